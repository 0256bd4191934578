// internal/rowlock/zk_locker.go
package rowlock

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

const zkLockRoot = "/row_locks"

// ZkLocker 用 ZooKeeper 的临时顺序节点实现跨进程的行级互斥，
// 供底层存储不支持 FOR UPDATE 语义时使用。拿到锁之后，
// 临界区仍然运行在一个普通的数据库事务里，提交/回滚语义与 GormLocker 一致。
type ZkLocker struct {
	conn *zk.Conn
	db   *gorm.DB
}

func NewZkLocker(conn *zk.Conn, db *gorm.DB) *ZkLocker {
	return &ZkLocker{conn: conn, db: db}
}

func (l *ZkLocker) WithRowLock(ctx context.Context, table, id string, opts Options, cs CriticalSection) error {
	lockPath, err := l.ensureLockPath(table, id)
	if err != nil {
		return errors.Wrap(err, "ensure zk lock path")
	}

	node, err := l.acquire(ctx, table, id, lockPath, opts)
	if err != nil {
		return err
	}
	defer l.release(node)

	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 与数据库实现对齐：目标行不存在时同样报 not_found
		var row map[string]interface{}
		if err := tx.Table(table).Where("id = ?", id).Take(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &Error{Table: table, ID: id, Reason: ReasonNotFound, cause: err}
			}
			return errors.Wrapf(err, "read locked row %s/%s", table, id)
		}
		return cs(tx)
	})
}

// ensureLockPath 确保 /row_locks/<table>/<id> 路径存在。
func (l *ZkLocker) ensureLockPath(table, id string) (string, error) {
	path := zkLockRoot
	for _, part := range []string{table, id} {
		if _, err := l.conn.Create(path, []byte(""), 0, zk.WorldACL(zk.PermAll)); err != nil && err != zk.ErrNodeExists {
			return "", err
		}
		path = path + "/" + part
	}
	if _, err := l.conn.Create(path, []byte(""), 0, zk.WorldACL(zk.PermAll)); err != nil && err != zk.ErrNodeExists {
		return "", err
	}
	return path, nil
}

// acquire 在锁路径下创建临时顺序节点并等待成为最小节点。
func (l *ZkLocker) acquire(ctx context.Context, table, id, lockPath string, opts Options) (string, error) {
	node, err := l.conn.CreateProtectedEphemeralSequential(lockPath+"/lock-", []byte(""), zk.WorldACL(zk.PermAll))
	if err != nil {
		return "", errors.Wrap(err, "create zk sequential node")
	}

	deadline := time.Now().Add(opts.timeout())
	for {
		children, _, err := l.conn.Children(lockPath)
		if err != nil {
			l.release(node)
			return "", errors.Wrap(err, "list zk lock children")
		}
		sortBySequence(children)

		myName := strings.TrimPrefix(node, lockPath+"/")
		if len(children) > 0 && myName == children[0] {
			return node, nil
		}

		if opts.NoWait {
			l.release(node)
			return "", &Error{Table: table, ID: id, Reason: ReasonAlreadyLocked}
		}

		// 监听前一个节点，它被删除后重新竞争
		prevIndex := -1
		for i, child := range children {
			if child == myName {
				prevIndex = i - 1
				break
			}
		}
		if prevIndex < 0 {
			l.release(node)
			return "", errors.New("zk lock node missing from children list")
		}

		_, _, eventChan, err := l.conn.ExistsW(lockPath + "/" + children[prevIndex])
		if err != nil {
			if err == zk.ErrNoNode {
				continue
			}
			l.release(node)
			return "", errors.Wrap(err, "watch previous zk lock node")
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			l.release(node)
			return "", &Error{Table: table, ID: id, Reason: ReasonTimeout}
		}

		select {
		case event := <-eventChan:
			if event.Type == zk.EventNodeDeleted {
				continue
			}
		case <-time.After(remaining):
			l.release(node)
			return "", &Error{Table: table, ID: id, Reason: ReasonTimeout}
		case <-ctx.Done():
			l.release(node)
			return "", ctx.Err()
		}
	}
}

// sortBySequence 按 ZooKeeper 顺序节点的序号排序。
// CreateProtectedEphemeralSequential 生成的节点名带 _c_<guid>- 前缀，
// 直接按字典序排会变成按 GUID 排，等待队列就不再是先来先得。
func sortBySequence(children []string) {
	sort.Slice(children, func(i, j int) bool {
		si, sj := sequenceOf(children[i]), sequenceOf(children[j])
		if si != sj {
			return si < sj
		}
		return children[i] < children[j]
	})
}

// sequenceOf 提取节点名末尾的序号。没有序号的节点排在最后。
func sequenceOf(name string) int64 {
	idx := strings.LastIndex(name, "-")
	if idx < 0 || idx == len(name)-1 {
		return int64(^uint64(0) >> 1)
	}
	seq, err := strconv.ParseInt(name[idx+1:], 10, 64)
	if err != nil {
		return int64(^uint64(0) >> 1)
	}
	return seq
}

func (l *ZkLocker) release(node string) {
	if node == "" {
		return
	}
	// 节点可能已随会话过期消失，ErrNoNode 无需处理
	_ = l.conn.Delete(node, -1)
}
