package interfaces

import "quant-agent/internal/types"

type ReportJournal interface {
	Append(r types.Report) error
	Close() error
}
