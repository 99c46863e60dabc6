// Package archive extracts patient archives downloaded from a PACS.
//
// An archive holds one top-level folder per patient, named with a
// 15-character timestamp prefix followed by the patient name, and the DICOM
// files nested below it. Extract flattens every member into one directory as
// <patient><i>.dcm.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// TimestampPrefixLen is the length of the timestamp that precedes the
// patient name in the archive's top-level folder
const TimestampPrefixLen = 15

// MaxMemberSize caps a single extracted member
const MaxMemberSize = 1 << 30

var (
	// ErrEmptyArchive is returned when an archive holds no files
	ErrEmptyArchive = errors.New("archive holds no files")

	// ErrUnsafePath is returned for members that would escape the destination
	ErrUnsafePath = errors.New("archive member escapes destination")

	// ErrMemberTooLarge is returned when a member exceeds MaxMemberSize
	ErrMemberTooLarge = errors.New("archive member too large")
)

// Result describes an extracted archive
type Result struct {
	// Folder is the archive's top-level folder as stored
	Folder string

	// Patient is Folder without its timestamp prefix
	Patient string

	// Files lists the extracted paths in archive order
	Files []string
}

// PatientName strips the timestamp prefix from a top-level folder name.
// Names no longer than the prefix are returned unchanged.
func PatientName(folder string) string {
	if len(folder) <= TimestampPrefixLen {
		return folder
	}
	return strings.TrimSpace(folder[TimestampPrefixLen:])
}

// Extract unpacks every file member of the zip at zipPath into destDir
func Extract(zipPath, destDir string) (*Result, error) {
	zr, err := zip.OpenReader(zipPath)
	if errors.Is(err, zip.ErrInsecurePath) {
		zr.Close()
		return nil, fmt.Errorf("%w: %s", ErrUnsafePath, zipPath)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", zipPath, err)
	}
	defer zr.Close()

	var members []*zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if err := checkMemberName(f.Name); err != nil {
			return nil, err
		}
		members = append(members, f)
	}
	if len(members) == 0 {
		return nil, ErrEmptyArchive
	}

	folder := strings.SplitN(members[0].Name, "/", 2)[0]
	res := &Result{Folder: folder, Patient: PatientName(folder)}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, err
	}

	for i, f := range members {
		target := filepath.Join(destDir, fmt.Sprintf("%s%d.dcm", res.Patient, i))
		if err := extractMember(f, target); err != nil {
			return nil, fmt.Errorf("extract %s: %w", f.Name, err)
		}
		res.Files = append(res.Files, target)
	}
	return res, nil
}

// checkMemberName rejects absolute names and names climbing out with ".."
func checkMemberName(name string) error {
	clean := path.Clean(strings.ReplaceAll(name, `\`, "/"))
	if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return nil
}

func extractMember(f *zip.File, target string) error {
	if f.UncompressedSize64 > MaxMemberSize {
		return ErrMemberTooLarge
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	// the header size can lie; bound the copy as well
	n, err := io.Copy(out, io.LimitReader(rc, MaxMemberSize+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > MaxMemberSize {
		err = ErrMemberTooLarge
	}
	if err != nil {
		os.Remove(target)
		return err
	}
	return nil
}
