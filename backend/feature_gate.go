package backend

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/go-featuregate/gate/guard"
)

func normalizeFeatureGateError(err error) error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return err
	}

	return goerrors.Wrap(err, goerrors.CategoryAuthz, "Feature gate check failed").
		WithCode(goerrors.CodeForbidden)
}

// requireFeatureGate is a no-op without a gate
func requireFeatureGate(ctx context.Context, featureGate gate.FeatureGate, key string, disabledErr error) error {
	if featureGate == nil {
		return nil
	}
	return guard.Require(ctx, featureGate, key,
		guard.WithDisabledError(disabledErr),
		guard.WithErrorMapper(normalizeFeatureGateError),
	)
}
