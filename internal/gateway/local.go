// Package gateway holds the development implementations of the messaging
// ports: a filesystem-backed transport and a log-only moderator channel. A
// real deployment fronts the core with a chat transport implementing the
// same interfaces.
package gateway

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/slowtunes/slowtunes/internal/config"
	"github.com/slowtunes/slowtunes/internal/ports"
)

// Local reads submissions from and writes artifacts to directories under
// the configured data dir. Source refs are paths relative to the inbox.
type Local struct {
	inboxDir    string
	scratchDir  string
	artifactDir string
	maxFileSize int64
	log         *slog.Logger
}

// NewLocal creates the gateway and its directory layout under cfg.App.DataDir.
func NewLocal(cfg *config.Config, log *slog.Logger) (*Local, error) {
	g := &Local{
		inboxDir:    filepath.Join(cfg.App.DataDir, "inbox"),
		scratchDir:  filepath.Join(cfg.App.DataDir, "scratch"),
		artifactDir: filepath.Join(cfg.App.DataDir, "artifacts"),
		maxFileSize: cfg.Audio.MaxFileSize,
		log:         log,
	}
	for _, dir := range []string{g.inboxDir, g.scratchDir, g.artifactDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create gateway dir %s: %w", dir, err)
		}
	}
	return g, nil
}

func (g *Local) Notify(ctx context.Context, userID uint64, message string) error {
	g.log.Info("user notification", "user_id", userID, "message", message)
	return nil
}

func (g *Local) DeliverArtifact(ctx context.Context, userID uint64, artifactRef string, meta ports.ArtifactMeta) error {
	if _, err := os.Stat(artifactRef); err != nil {
		return fmt.Errorf("artifact missing: %w", err)
	}
	g.log.Info("artifact delivered",
		"user_id", userID,
		"artifact", artifactRef,
		"title", meta.Title,
		"performer", meta.Performer,
	)
	return nil
}

// DownloadInbound copies the submitted file into the scratch dir so the job
// can mutate and delete it freely. Files over the size cap are refused
// before any copying happens.
func (g *Local) DownloadInbound(ctx context.Context, sourceRef string) (string, error) {
	src := filepath.Join(g.inboxDir, filepath.Base(sourceRef))

	info, err := os.Stat(src)
	if err != nil {
		return "", fmt.Errorf("stat source: %w", err)
	}
	if info.Size() > g.maxFileSize {
		return "", fmt.Errorf("file is %d bytes, limit is %d", info.Size(), g.maxFileSize)
	}

	localRef := filepath.Join(g.scratchDir, uuid.NewString()+filepath.Ext(src))
	if err := copyFile(src, localRef); err != nil {
		return "", fmt.Errorf("copy to scratch: %w", err)
	}
	return localRef, nil
}

// UploadOutbound moves the processed file into the artifact dir and returns
// its durable path.
func (g *Local) UploadOutbound(ctx context.Context, localRef string) (string, error) {
	artifactRef := filepath.Join(g.artifactDir, filepath.Base(localRef))
	if err := os.Rename(localRef, artifactRef); err != nil {
		// scratch and artifacts may sit on different filesystems
		if err := copyFile(localRef, artifactRef); err != nil {
			return "", fmt.Errorf("store artifact: %w", err)
		}
	}
	return artifactRef, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
