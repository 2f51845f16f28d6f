package logger

import "go.uber.org/zap"

// New returns a development logger outside production.
func New(environment string) (*zap.Logger, error) {
	if environment == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
