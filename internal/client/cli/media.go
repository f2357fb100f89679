package cli

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/capsulekeeper/internal/client/services"
	"github.com/dmitrijs2005/capsulekeeper/internal/common"
	"github.com/dmitrijs2005/capsulekeeper/internal/filex"
	"github.com/dmitrijs2005/capsulekeeper/internal/netx"
	"github.com/dustin/go-humanize"
)

// Upload attaches a local file to a locked capsule the user owns.
func (a *App) Upload(ctx context.Context, args []string) error {
	if err := needArgs(args, 2, "upload <capsule-id> <file>"); err != nil {
		return err
	}
	path := args[1]

	f, err := os.Open(path)
	if err != nil {
		return common.NewValidationError("file", "cannot open %s: %v", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.IsDir() {
		return common.NewValidationError("file", "%s is a directory", path)
	}
	contentType, err := detectContentType(f)
	if err != nil {
		return err
	}

	m, err := a.capsules.Upload(ctx, args[0], services.Upload{
		Filename:    filepath.Base(path),
		ContentType: contentType,
		Size:        info.Size(),
		Body:        f,
	})
	if err != nil {
		return err
	}
	a.printf("Uploaded %s (%s, %s) as %s.\n", m.Filename, m.FileType, humanize.Bytes(uint64(info.Size())), m.ID)
	return nil
}

// detectContentType guesses the MIME type from the extension, falling back
// to sniffing the first bytes. The file offset is restored.
func detectContentType(f *os.File) (string, error) {
	if ct := mime.TypeByExtension(filepath.Ext(f.Name())); ct != "" {
		return ct, nil
	}
	head := make([]byte, 512)
	n, err := f.Read(head)
	if err != nil && err != io.EOF {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return http.DetectContentType(head[:n]), nil
}

// MediaURL prints a short-lived link to media of an unlocked capsule.
func (a *App) MediaURL(ctx context.Context, args []string) error {
	if err := needArgs(args, 2, "url <capsule-id> <media-id>"); err != nil {
		return err
	}
	m, u, err := a.capsules.MediaURL(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	link, err := a.resolveURL(u.URL)
	if err != nil {
		return err
	}
	a.printf("%s\n%s\n", m.Filename, link)
	if u.ExpiresIn > 0 {
		a.printf("The link expires in %d seconds.\n", u.ExpiresIn)
	}
	return nil
}

// Fetch downloads media of an unlocked capsule into the download directory.
// An existing file is never overwritten.
func (a *App) Fetch(ctx context.Context, args []string) error {
	if err := needArgs(args, 2, "fetch <capsule-id> <media-id>"); err != nil {
		return err
	}
	m, u, err := a.capsules.MediaURL(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	link, err := a.resolveURL(u.URL)
	if err != nil {
		return err
	}

	dir, err := a.downloadDir()
	if err != nil {
		return err
	}
	path, err := filex.FreePath(dir, m.Filename)
	if err != nil {
		return err
	}
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	n, err := netx.Download(ctx, a.download, link, out, common.MaxMediaSize)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return err
	}
	a.printf("Saved %s (%s).\n", path, humanize.Bytes(uint64(n)))
	return nil
}

// DeleteMedia removes media from a locked capsule the user owns.
func (a *App) DeleteMedia(ctx context.Context, args []string) error {
	if err := needArgs(args, 2, "rmmedia <capsule-id> <media-id>"); err != nil {
		return err
	}
	ok, err := a.confirm("Remove media " + args[1] + "?")
	if err != nil || !ok {
		return err
	}
	if err := a.capsules.DeleteMedia(ctx, args[0], args[1]); err != nil {
		return err
	}
	a.println("Media removed.")
	return nil
}

// resolveURL makes a server-relative media link absolute.
func (a *App) resolveURL(link string) (string, error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("%w: media url %q", common.ErrMalformedResponse, link)
	}
	if u.IsAbs() {
		return link, nil
	}
	base, err := url.Parse(a.config.ServerURL)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(u).String(), nil
}

func (a *App) downloadDir() (string, error) {
	if filepath.IsAbs(a.config.DownloadDir) {
		if err := os.MkdirAll(a.config.DownloadDir, 0o770); err != nil {
			return "", err
		}
		return a.config.DownloadDir, nil
	}
	return filex.EnsureSubdDir(a.config.DownloadDir)
}
