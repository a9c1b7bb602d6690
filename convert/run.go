// Package convert drives batch processing of documents.
package convert

import (
	"context"
	"fmt"
	"path/filepath"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"img2webp/state"
)

// Run is the convert subcommand action. Positional arguments override
// documents, images and html directories from configuration.
func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("convert")

	dirs := env.Cfg.Directories
	for i, dst := range []*string{&dirs.Documents, &dirs.Images, &dirs.HTML} {
		arg := cmd.Args().Get(i)
		if len(arg) == 0 {
			continue
		}
		if *dst, err = filepath.Abs(arg); err != nil {
			return err
		}
	}
	if cmd.Args().Len() > 3 {
		log.Warn("Malformed command line, too many directories", zap.Strings("ignoring", cmd.Args().Slice()[3:]))
	}

	log.Info("Processing starting",
		zap.String("documents", dirs.Documents), zap.String("images", dirs.Images),
		zap.String("html", dirs.HTML), zap.String("output", dirs.Output))

	summary, err := Batch(ctx, env, dirs, nil)
	if err != nil {
		return fmt.Errorf("batch processing failed: %w", err)
	}
	log.Info("Processing completed", zap.Duration("elapsed", env.Uptime()), zap.String("run_id", summary.RunID))

	if n := summary.DocumentFormatFailures(); n > 0 {
		return fmt.Errorf("%d document(s) could not be read, see %s", n, filepath.Join(dirs.Logs, FailuresManifest))
	}
	return nil
}
