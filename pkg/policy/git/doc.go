// Package git provides a Git-backed source for the resilience file.
//
// A Repository clones the configured branch and exposes the path of the
// resilience file inside the clone. A Poller pulls on a cron schedule and
// calls back only when a pull changed that file, so unrelated commits do not
// trigger a recompile.
//
// # Basic Usage
//
//	repo, err := git.NewRepository(cfg.Source.Git)
//	if err != nil {
//		return err
//	}
//	if err := repo.Clone(ctx); err != nil {
//		return err
//	}
//	data, err := os.ReadFile(repo.FilePath())
//
// # Authentication
//
// Supports three authentication types:
//   - token: HTTPS basic auth with a personal access token
//   - ssh: public key authentication, key file must be 0600
//   - none: public repositories
//
// # Failed Reloads
//
// When the ChangeFunc rejects a commit the poller keeps reporting the last
// applied SHA. The worktree stays at the pulled commit; the registry keeps
// serving the previous snapshot until a later commit compiles.
package git
