package watch

import (
	"context"
	"fmt"
	"sync"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"img2webp/common"
	"img2webp/convert"
	"img2webp/state"
)

// Run is the watch subcommand action.
func Run(ctx context.Context, cmd *cli.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("watch")

	debounce, err := time.ParseDuration(env.Cfg.Watch.Debounce)
	if err != nil || debounce <= 0 {
		return common.NewError(common.ErrorKindConfiguration, fmt.Errorf("bad watch debounce %q: %v", env.Cfg.Watch.Debounce, err))
	}
	if cmd.Args().Len() > 0 {
		log.Warn("Malformed command line, watch takes no arguments", zap.Strings("ignoring", cmd.Args().Slice()))
	}

	dirs := env.Cfg.Directories
	w := New([]string{dirs.Documents, dirs.Images, dirs.HTML}, debounce, func(ctx context.Context) error {
		progress := make(chan convert.Progress, 16)
		var wg sync.WaitGroup
		wg.Go(func() { logProgress(log, progress) })
		defer wg.Wait()
		defer close(progress)

		summary, err := convert.Batch(ctx, env, dirs, progress)
		if err != nil {
			return err
		}
		log.Info("Run finished", zap.String("run_id", summary.RunID), zap.Int("converted", summary.Converted()),
			zap.Int("missing", len(summary.Missing)), zap.Int("failed documents", len(summary.FailedDocuments)))
		return nil
	}, env.Log)

	return w.Run(ctx)
}

func logProgress(log *zap.Logger, progress <-chan convert.Progress) {
	for p := range progress {
		switch p.Stage {
		case convert.StageStarted:
			log.Info("Document", zap.String("document", p.Document), zap.Int("index", p.Index), zap.Int("total", p.Total))
		case convert.StageFailed:
			log.Warn("Document failed", zap.String("document", p.Document), zap.Error(p.Err))
		case convert.StageImage:
			if p.Err != nil {
				log.Debug("Image incomplete", zap.String("document", p.Document), zap.String("token", p.Token), zap.Error(p.Err))
			}
		}
	}
}
