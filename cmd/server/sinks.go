package main

import (
	"errors"
	"log"

	persistlog "storageracks.ai/internal/persistence/log"
	"storageracks.ai/internal/sim/world"
)

// worldSinks holds the on-disk logs the world writes through.
type worldSinks struct {
	tick  *persistlog.TickLogger
	audit *persistlog.AuditLogger
	drops *persistlog.DropLogger
	idx   runtimeIndex
}

func openWorldSinks(worldDir string, idx runtimeIndex, logger *log.Logger) *worldSinks {
	return &worldSinks{
		tick:  persistlog.NewTickLogger(worldDir),
		audit: persistlog.NewAuditLogger(worldDir),
		drops: persistlog.NewDropLogger(worldDir, logger),
		idx:   idx,
	}
}

// apply fills the logging fields of opts.
func (s *worldSinks) apply(opts world.Options) world.Options {
	opts.AuditLogger = persistlog.MultiAudit{s.audit, optionalAudit(s.idx)}
	opts.TickLogger = persistlog.MultiTick{s.tick, optionalTick(s.idx)}
	opts.ItemSink = s.drops
	return opts
}

func (s *worldSinks) Close() error {
	return errors.Join(s.tick.Close(), s.audit.Close(), s.drops.Close())
}
