package config

import "github.com/retrack-engine/retrack/internal/domain"

// RetryStrategy converts a config block into the domain.RetryStrategy
// tagged union consumed by the Task Queue's executors.
func (r RetryStrategyBlock) RetryStrategy() *domain.RetryStrategy {
	switch r.Kind {
	case "constant":
		return &domain.RetryStrategy{
			Kind: domain.RetryKindConstant,
			Constant: &domain.ConstantRetry{
				Interval:    r.Interval,
				MaxAttempts: r.MaxAttempts,
			},
		}
	case "exponential":
		return &domain.RetryStrategy{
			Kind: domain.RetryKindExponential,
			Exponential: &domain.ExponentialRetry{
				Initial:     r.Initial,
				Multiplier:  r.Multiplier,
				Max:         r.Max,
				MaxAttempts: r.MaxAttempts,
			},
		}
	default:
		return nil
	}
}
