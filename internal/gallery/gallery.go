package gallery

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/eleven-am/roverlink/internal/frames"
	"github.com/eleven-am/roverlink/internal/recording"
)

const photoQuality = 90

// Gallery keeps recordings and photos as files under one directory and
// indexes them in the Store.
type Gallery struct {
	dir    string
	store  *Store
	logger *slog.Logger
	now    func() time.Time

	mu sync.Mutex
}

func New(dir string, store *Store, logger *slog.Logger) (*Gallery, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create gallery dir: %w", err)
	}
	return &Gallery{
		dir:    dir,
		store:  store,
		logger: logger.With("component", "gallery"),
		now:    time.Now,
	}, nil
}

func (g *Gallery) Dir() string {
	return g.dir
}

// Persist moves a finished recording into the gallery and records it.
func (g *Gallery) Persist(ctx context.Context, tmpPath string, meta recording.Meta) error {
	info, err := os.Stat(tmpPath)
	if err != nil {
		return fmt.Errorf("stat recording: %w", err)
	}

	name, dest, err := g.reserve(".mp4")
	if err != nil {
		return err
	}
	if err := moveFile(tmpPath, dest); err != nil {
		os.Remove(dest)
		return fmt.Errorf("move recording: %w", err)
	}

	item := &Item{
		Kind:       KindVideo,
		FileName:   name,
		Path:       dest,
		SizeBytes:  info.Size(),
		Frames:     meta.Frames,
		DurationMs: meta.Duration.Milliseconds(),
		SessionID:  meta.SessionID,
	}
	if err := g.store.Create(ctx, item); err != nil {
		return fmt.Errorf("record recording: %w", err)
	}

	g.logger.Info("recording saved", "id", item.ID, "file", name, "frames", meta.Frames, "size", info.Size())
	return nil
}

func (g *Gallery) SavePhoto(ctx context.Context, img image.Image) (*Item, error) {
	if img == nil {
		return nil, errors.New("no image")
	}
	data, err := frames.EncodeJPEG(img, photoQuality)
	if err != nil {
		return nil, fmt.Errorf("encode photo: %w", err)
	}

	name, dest, err := g.reserve(".jpg")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		os.Remove(dest)
		return nil, fmt.Errorf("write photo: %w", err)
	}

	item := &Item{
		Kind:      KindPhoto,
		FileName:  name,
		Path:      dest,
		SizeBytes: int64(len(data)),
	}
	if err := g.store.Create(ctx, item); err != nil {
		os.Remove(dest)
		return nil, fmt.Errorf("record photo: %w", err)
	}

	g.logger.Info("photo saved", "id", item.ID, "file", name)
	return item, nil
}

func (g *Gallery) Get(ctx context.Context, id string) (*Item, error) {
	return g.store.GetByID(ctx, id)
}

func (g *Gallery) List(ctx context.Context, kind Kind, limit, offset int) ([]*Item, error) {
	return g.store.List(ctx, kind, limit, offset)
}

func (g *Gallery) Remove(ctx context.Context, id string) error {
	item, err := g.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := g.store.Delete(ctx, id); err != nil {
		return err
	}
	if err := os.Remove(item.Path); err != nil && !os.IsNotExist(err) {
		g.logger.Warn("failed to remove gallery file", "path", item.Path, "error", err)
	}
	return nil
}

// reserve claims an unused rover_<unixms><ext> name in the gallery dir by
// creating an empty file under it. The caller overwrites or removes it.
func (g *Gallery) reserve(ext string) (string, string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	base := fmt.Sprintf("rover_%d", g.now().UnixMilli())
	name := base + ext
	for i := 1; ; i++ {
		path := filepath.Join(g.dir, name)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			f.Close()
			return name, path, nil
		}
		if !os.IsExist(err) {
			return "", "", fmt.Errorf("reserve gallery file: %w", err)
		}
		name = fmt.Sprintf("%s_%d%s", base, i, ext)
	}
}

func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) || !errors.Is(linkErr.Err, syscall.EXDEV) {
		return err
	}

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
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}
	return os.Remove(src)
}
