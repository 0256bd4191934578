// internal/retry/cel_rules.go
package retry

import (
	"errors"
	"fmt"

	"github.com/google/cel-go/cel"
)

// RuleClassifier 在内置规则之上叠加一组可配置的 CEL 表达式。
// 每条规则以 {code, message} 为事实求值，任意一条判真即视为可重试；
// 都不命中时回落到内置分类器。结构化的 Retryable 标记依然拥有最高优先级。
//
// 规则示例: "code >= 500 || message.contains('throttled')"
type RuleClassifier struct {
	programs []cel.Program
	fallback Classifier
}

// NewRuleClassifier 编译规则表达式。任何一条规则编译失败都直接报错，
// 避免带着坏规则上线后悄悄改变重试行为。
func NewRuleClassifier(rules []string, fallback Classifier) (*RuleClassifier, error) {
	if fallback == nil {
		fallback = NewDefaultClassifier()
	}

	env, err := cel.NewEnv(
		cel.Variable("code", cel.IntType),
		cel.Variable("message", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}

	programs := make([]cel.Program, 0, len(rules))
	for _, rule := range rules {
		ast, iss := env.Compile(rule)
		if iss != nil && iss.Err() != nil {
			return nil, fmt.Errorf("compile retry rule %q: %w", rule, iss.Err())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("build retry rule %q: %w", rule, err)
		}
		programs = append(programs, prg)
	}

	return &RuleClassifier{programs: programs, fallback: fallback}, nil
}

func (c *RuleClassifier) ShouldRetry(err error) bool {
	if err == nil {
		return false
	}

	// 显式标记不经过规则引擎
	var structured *Error
	if errors.As(err, &structured) {
		return structured.Retryable
	}

	fact := map[string]interface{}{
		"code":    int64(0),
		"message": err.Error(),
	}

	for _, prg := range c.programs {
		out, _, evalErr := prg.Eval(fact)
		if evalErr != nil {
			// 单条规则求值失败不影响其余规则
			continue
		}
		if matched, ok := out.Value().(bool); ok && matched {
			return true
		}
	}

	return c.fallback.ShouldRetry(err)
}
