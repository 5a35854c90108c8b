package manager

import (
	"context"
	"fmt"

	"mercator-hq/bulwark/pkg/config"
	"mercator-hq/bulwark/pkg/policy"
	"mercator-hq/bulwark/pkg/policy/git"
	"mercator-hq/bulwark/pkg/policy/loader"
)

// Source modes.
const (
	ModeInline = "inline"
	ModeFile   = "file"
	ModeGit    = "git"
)

// Source produces the resilience configuration to compile.
type Source interface {
	// Mode returns the source mode name.
	Mode() string

	// Open prepares the source. It is called once before the first Read.
	Open(ctx context.Context) error

	// Read returns the current configuration and the revision it was read
	// at: a file path or a commit SHA.
	Read(ctx context.Context) (*policy.Config, string, error)
}

// NewSource returns the source selected by cfg.Source.Mode.
func NewSource(cfg *config.Config) (Source, error) {
	l := loader.New(cfg.Source.MaxFileSize)

	switch cfg.Source.Mode {
	case ModeInline, "":
		return &inlineSource{cfg: cfg.Resilience}, nil
	case ModeFile:
		return &fileSource{path: cfg.Source.FilePath, loader: l}, nil
	case ModeGit:
		repo, err := git.NewRepository(cfg.Source.Git)
		if err != nil {
			return nil, fmt.Errorf("failed to create git repository: %w", err)
		}
		return &gitSource{repo: repo, loader: l}, nil
	default:
		return nil, fmt.Errorf("unknown source mode %q", cfg.Source.Mode)
	}
}

type inlineSource struct {
	cfg policy.Config
}

func (s *inlineSource) Mode() string                 { return ModeInline }
func (s *inlineSource) Open(context.Context) error   { return nil }
func (s *inlineSource) Read(context.Context) (*policy.Config, string, error) {
	cfg := s.cfg
	return &cfg, "", nil
}

type fileSource struct {
	path   string
	loader *loader.Loader
}

func (s *fileSource) Mode() string               { return ModeFile }
func (s *fileSource) Open(context.Context) error { return nil }
func (s *fileSource) Read(context.Context) (*policy.Config, string, error) {
	cfg, err := s.loader.LoadFile(s.path)
	return cfg, s.path, err
}

type gitSource struct {
	repo   *git.Repository
	loader *loader.Loader
}

func (s *gitSource) Mode() string { return ModeGit }

func (s *gitSource) Open(ctx context.Context) error {
	return s.repo.Clone(ctx)
}

func (s *gitSource) Read(context.Context) (*policy.Config, string, error) {
	head, err := s.repo.HeadCommit()
	if err != nil {
		return nil, "", err
	}
	cfg, err := s.loader.LoadFile(s.repo.FilePath())
	return cfg, head.SHA, err
}
