package action

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/vk/gridbuild/internal/pathlike"
)

// Archive kinds.
const (
	ArchiveZip   = "zip"
	ArchiveTarGz = "tar.gz"
)

// Archive packs files into an archive. Entry names are relative to Root,
// under Prefix when set.
type Archive struct {
	Base
	Path   pathlike.Value
	Type   string
	Root   pathlike.Value
	Prefix string
	Files  []pathlike.Value
}

// ArchiveArgs are the resolved arguments of Archive.
type ArchiveArgs struct {
	Path   string
	Kind   string
	Root   string
	Prefix string
	Files  []string
}

func (a *Archive) Kind() Kind { return KindArchive }

func (a *Archive) Requirements() []pathlike.TaskReference {
	return pathlike.References(append([]pathlike.Value{a.Path, a.Root}, a.Files...)...)
}

// InferArchiveKind maps a file name to an archive kind by extension.
func InferArchiveKind(name string) (string, error) {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return ArchiveZip, nil
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return ArchiveTarGz, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownArchiveKind, filepath.Base(name))
}

func (a *Archive) TransformArguments(ctx context.Context, ec *ExecContext) (Arguments, error) {
	if a.Path == nil {
		return nil, fmt.Errorf("%s: archive: %w: path", a.Loc, ErrMissingField)
	}
	paths := ec.PathContext()
	out, err := pathlike.ResolvePath(paths, a.Path, ec.Task.OutputPath)
	if err != nil {
		return nil, err
	}

	kind := a.Type
	if kind == "" {
		if kind, err = InferArchiveKind(out); err != nil {
			return nil, fmt.Errorf("%s: %w", a.Loc, err)
		}
	}

	root := ec.Task.InputPath
	if a.Root != nil {
		if root, err = pathlike.ResolvePath(paths, a.Root, ec.Task.InputPath); err != nil {
			return nil, err
		}
	}

	files, err := pathlike.ResolvePathList(paths, a.Files, ec.Task.InputPath)
	if err != nil {
		return nil, err
	}
	return ArchiveArgs{Path: out, Kind: kind, Root: root, Prefix: a.Prefix, Files: files}, nil
}

func (a *Archive) RunWithArguments(ctx context.Context, ec *ExecContext, args Arguments) (CommandOutput, error) {
	resolved, err := argsOf[ArchiveArgs](KindArchive, args)
	if err != nil {
		return CommandOutput{}, err
	}
	logger := ec.logger(ctx, KindArchive)
	if ec.DryRun {
		logger.Info("Dry run, not archiving.", "path", resolved.Path, "kind", resolved.Kind, "files", len(resolved.Files))
		return CommandOutput{}, nil
	}

	switch resolved.Kind {
	case ArchiveZip:
	case ArchiveTarGz:
		return CommandOutput{}, fmt.Errorf("%s: %w: %s", a.Loc, ErrArchiveKindUnimplemented, resolved.Kind)
	default:
		return CommandOutput{}, fmt.Errorf("%s: %w: %q", a.Loc, ErrUnknownArchiveKind, resolved.Kind)
	}

	ignored := func(string) bool { return false }
	if ec.Workspace != nil {
		ignored = ec.Workspace.Ignored
	}
	logger.Debug("Writing archive.", "path", resolved.Path, "root", resolved.Root)
	if err := writeZip(resolved, ignored); err != nil {
		return CommandOutput{}, fmt.Errorf("writing %s: %w", resolved.Path, err)
	}
	return CommandOutput{}, nil
}

func (a *Archive) Hash(ec *ExecContext, args Arguments, fn HashFunc) string {
	resolved, _ := args.(ArchiveArgs)
	parts := []string{
		string(KindArchive),
		filepath.ToSlash(resolved.Path),
		resolved.Kind,
		resolved.Prefix,
		filepath.ToSlash(resolved.Root),
	}
	for _, f := range resolved.Files {
		parts = append(parts, filepath.ToSlash(f))
	}
	return chain(fn, parts...)
}

// EntryName is the archive name of file.
func (a ArchiveArgs) EntryName(file string) (string, error) {
	rel, err := filepath.Rel(a.Root, file)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%s is outside the archive root %s", file, a.Root)
	}
	if a.Prefix != "" {
		rel = path.Join(a.Prefix, rel)
	}
	return rel, nil
}

// writeZip adds every regular file below args.Files. Entries whose base name
// is ignored and symlinks to directories are left out.
func writeZip(args ArchiveArgs, ignored func(name string) bool) (err error) {
	if err := os.MkdirAll(filepath.Dir(args.Path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(args.Path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	zw := zip.NewWriter(f)
	for _, file := range args.Files {
		err := filepath.WalkDir(file, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if p != file && ignored(d.Name()) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			if d.Type()&fs.ModeSymlink != 0 {
				info, err := os.Stat(p)
				if err != nil {
					return err
				}
				if info.IsDir() {
					return nil
				}
			}
			return addZipEntry(zw, args, p)
		})
		if err != nil {
			zw.Close()
			return err
		}
	}
	return zw.Close()
}

func addZipEntry(zw *zip.Writer, args ArchiveArgs, file string) error {
	info, err := os.Stat(file)
	if err != nil {
		return err
	}
	name, err := args.EntryName(file)
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	in, err := os.Open(file)
	if err != nil {
		return err
	}
	defer in.Close()
	_, err = io.Copy(w, in)
	return err
}
