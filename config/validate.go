package config

import "fmt"

// ErrInvalid 用于参数验证错误。
type ErrInvalid string

func (e ErrInvalid) Error() string { return string(e) }

func invalidf(format string, args ...interface{}) error {
	return ErrInvalid(fmt.Sprintf(format, args...))
}

// Validate ensures required fields are present and every section is consistent.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return ErrInvalid("env is required")
	}
	if _, ok := cfg.Modes[cfg.GameMode]; !ok {
		return invalidf("unknown gameMode %q", cfg.GameMode)
	}
	for name, m := range cfg.Modes {
		if err := validateCost(name, m); err != nil {
			return err
		}
	}
	checks := []func(AppConfig) error{
		validateCredit,
		validateInterest,
		validateLoan,
		validateScore,
		validateOrders,
		validateSession,
		validateSymbols,
	}
	for _, check := range checks {
		if err := check(cfg); err != nil {
			return err
		}
	}
	return nil
}
