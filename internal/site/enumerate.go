package site

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"

	"git.home.luguber.info/inful/mobsite/internal/calendar"
	"git.home.luguber.info/inful/mobsite/internal/logfields"
	"git.home.luguber.info/inful/mobsite/internal/mobs"
	"git.home.luguber.info/inful/mobsite/internal/ssg"
)

// Pages enumerates index.html, join.html and one page per record of src, in
// that order. The source is fetched once; onRecords, when set, receives the
// fetched records before any asset is built.
func (s *Site) Pages(src mobs.Source, onRecords func([]mobs.Mob)) ssg.Enumerator {
	return func(ctx context.Context) ([]ssg.Asset, error) {
		records, err := src.Fetch(ctx)
		if err != nil {
			return nil, &ssg.EnumerationError{Kind: ssg.EnumerationFetch, Err: err}
		}
		slog.Debug("Fetched mob records", logfields.Count(len(records)))
		if onRecords != nil {
			onRecords(records)
		}

		assets := make([]ssg.Asset, 0, len(records)+2)
		assets = append(assets,
			ssg.NewAsset(ssg.MustLogicalPath(IndexPath), s.indexPage(records)),
			ssg.NewAsset(ssg.MustLogicalPath(JoinPath), s.joinPage()),
		)
		for _, m := range records {
			p, err := s.MobPath(m.ID)
			if err != nil {
				return nil, &ssg.EnumerationError{Kind: ssg.EnumerationInvalidPath, Path: m.ID, Err: err}
			}
			assets = append(assets, ssg.NewAsset(p, s.mobPage(m)))
		}
		return assets, nil
	}
}

// StaticFiles lists the logical paths of every static file the site ships.
func (s *Site) StaticFiles() []string {
	files := []string{
		StylesheetPath,
		calendar.ScriptPath,
		calendar.StylesheetPath,
		ZulipLogoPath,
		GitHubLogoPath,
		TwitterLogo,
	}
	for _, f := range s.opts.Fonts {
		files = append(files, FontsDir+"/"+f)
	}
	return files
}

// Files enumerates the static files. Their bytes are read at resolve time,
// so a missing file fails only its own asset.
func (s *Site) Files() ssg.Enumerator {
	return func(context.Context) ([]ssg.Asset, error) {
		names := s.StaticFiles()
		assets := make([]ssg.Asset, 0, len(names))
		for _, name := range names {
			p, err := ssg.ParseLogicalPath(name)
			if err != nil {
				return nil, &ssg.EnumerationError{Kind: ssg.EnumerationInvalidPath, Path: name, Err: err}
			}
			assets = append(assets, ssg.NewAsset(p, s.file(name)))
		}
		return assets, nil
	}
}

func (s *Site) file(name string) ssg.Source {
	return ssg.Bytes(func(context.Context) ([]byte, error) {
		data, err := fs.ReadFile(s.files, name)
		if err != nil {
			return nil, fmt.Errorf("read static file: %w", err)
		}
		return data, nil
	})
}

// Enumerator is the complete asset list of the site: pages, then static files.
func (s *Site) Enumerator(src mobs.Source, onRecords func([]mobs.Mob)) ssg.Enumerator {
	return ssg.Concat(s.Pages(src, onRecords), s.Files())
}
