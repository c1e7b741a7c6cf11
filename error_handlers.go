package foldersim

import (
	lg "github.com/Andrej220/go-utils/zlog"
)

// reportInternalError reports a non-fatal fault.
//
// Internal errors never stop a folder or the refresher. They are logged
// and, if a handler is registered, forwarded to it.
func (s *Simulation) reportInternalError(e error) {
	lg.FromContext(s.opts.LogContext).Warn("internal error", lg.Any("error", e))
	if s.opts.OnInternalError != nil {
		s.opts.OnInternalError(e)
	}
}
