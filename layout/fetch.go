package layout

import (
	"context"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	getter "github.com/hashicorp/go-getter"
	"go.uber.org/zap"

	"github.com/rwaitman/naaccr-tumor-data/errors"
	"github.com/rwaitman/naaccr-tumor-data/logger"
)

// Document is a layout document resolved to a local file.
type Document struct {
	Path    string
	Input   string
	Fetched bool
	cleanup func()
}

// Close removes the temporary copy of a fetched document.
func (d *Document) Close() {
	if d.cleanup != nil {
		d.cleanup()
		d.cleanup = nil
	}
}

// Resolve turns input into a readable layout document. Local paths are
// used in place; anything go-getter recognizes as remote (http(s), s3,
// gcs, git) is downloaded to a temporary file that Close removes.
func Resolve(ctx context.Context, input string, log *zap.SugaredLogger) (*Document, error) {
	log = logger.OrNop(log)

	pwd, err := os.Getwd()
	if err != nil {
		pwd = "."
	}

	detected, err := getter.Detect(input, pwd, getter.Detectors)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to detect source type of %s", input)
	}
	log.Debugw("Detected layout source", "input", input, "detected", detected)

	u, err := url.Parse(detected)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse detected URL")
	}

	if u.Scheme == "file" || u.Scheme == "" {
		local := input
		if u.Scheme == "file" {
			local = u.Path
		}
		if strings.HasPrefix(local, "~/") {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, errors.Wrap(err, "failed to expand home directory")
			}
			local = filepath.Join(home, local[2:])
		}
		if _, err := os.Stat(local); err != nil {
			return nil, errors.Wrapf(err, "layout document %s", local)
		}
		return &Document{Path: local, Input: input}, nil
	}

	return fetch(ctx, input, detected, u, log)
}

func fetch(ctx context.Context, input, detected string, u *url.URL, log *zap.SugaredLogger) (*Document, error) {
	dir, err := os.MkdirTemp("", "naaccr-layout-*")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create temp directory")
	}

	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		name = "layout.txt"
	}
	dst := filepath.Join(dir, name)

	client := &getter.Client{
		Ctx:     ctx,
		Src:     detected,
		Dst:     dst,
		Mode:    getter.ClientModeFile,
		Getters: getter.Getters,
	}

	log.Infow("Fetching layout document", "input", input, "destination", dst)
	if err := client.Get(); err != nil {
		os.RemoveAll(dir)
		return nil, errors.Wrapf(err, "failed to fetch %s", input)
	}

	return &Document{
		Path:    dst,
		Input:   input,
		Fetched: true,
		cleanup: func() { os.RemoveAll(dir) },
	}, nil
}
