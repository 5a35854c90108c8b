package git

import (
	"fmt"
	"os"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"mercator-hq/bulwark/pkg/config"
)

// Auth types accepted in configuration.
const (
	AuthNone  = "none"
	AuthToken = "token"
	AuthSSH   = "ssh"
)

// NewAuth returns the transport credentials described by cfg.
// Public repositories use AuthNone, which yields a nil method.
func NewAuth(cfg config.GitAuthConfig) (transport.AuthMethod, error) {
	switch cfg.Type {
	case AuthNone, "":
		return nil, nil

	case AuthToken:
		if cfg.Token == "" {
			return nil, fmt.Errorf("token auth requires non-empty token")
		}
		// The username is ignored by GitHub, GitLab and Bitbucket token auth.
		return &http.BasicAuth{Username: "git", Password: cfg.Token}, nil

	case AuthSSH:
		if cfg.SSHKeyPath == "" {
			return nil, fmt.Errorf("ssh auth requires ssh_key_path")
		}
		if err := checkKeyFile(cfg.SSHKeyPath); err != nil {
			return nil, err
		}
		auth, err := ssh.NewPublicKeysFromFile("git", cfg.SSHKeyPath, cfg.SSHKeyPassphrase)
		if err != nil {
			return nil, fmt.Errorf("failed to load SSH key: %w", err)
		}
		return auth, nil

	default:
		return nil, fmt.Errorf("unknown auth type: %s", cfg.Type)
	}
}

// checkKeyFile rejects private keys readable by group or others.
func checkKeyFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to access SSH key file: %w", err)
	}
	if mode := info.Mode().Perm(); mode&0077 != 0 {
		return fmt.Errorf("SSH key file permissions too open (%o), should be 0600", mode)
	}
	return nil
}
