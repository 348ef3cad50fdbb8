package interfaces

import (
	"context"

	"quant-agent/internal/types"
)

type Refresher interface {
	Refresh(ctx context.Context, symbol string) error
}

// Agent is the inbound analysis contract used by the front ends.
type Agent interface {
	Analyze(ctx context.Context, symbol string) (types.Report, error)
}
