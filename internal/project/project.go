// Package project provides calibration session files and their persistence.
package project

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"camera-calibration/internal/calib"
	"camera-calibration/internal/pattern"

	"github.com/pkg/errors"
)

// Extension is the conventional project file extension.
const Extension = ".calproj"

// File represents a calibration session: the target, the lens model and
// the images it was calibrated from.
type File struct {
	Version     int       `json:"version"`
	Name        string    `json:"name"`
	Created     time.Time `json:"created"`
	Modified    time.Time `json:"modified"`
	Description string    `json:"description,omitempty"`

	Pattern pattern.Spec `json:"pattern"`
	Model   string       `json:"model"`

	// Image paths (relative to project file)
	ImagePaths []string `json:"images,omitempty"`

	// Saved result path (relative to project file)
	ResultPath string `json:"result,omitempty"`
}

// New creates a new project for the given target and model.
func New(name string, spec pattern.Spec, model calib.Model) *File {
	now := time.Now()
	return &File{
		Version:  1,
		Name:     name,
		Created:  now,
		Modified: now,
		Pattern:  spec,
		Model:    model.String(),
	}
}

// Load loads a project from a file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read project %s", path)
	}

	var proj File
	if err := json.Unmarshal(data, &proj); err != nil {
		return nil, errors.Wrapf(err, "failed to parse project %s", path)
	}
	if err := proj.Pattern.Validate(); err != nil {
		return nil, errors.Wrapf(err, "project %s", path)
	}
	return &proj, nil
}

// Save saves the project to a file.
func (p *File) Save(path string) error {
	p.Modified = time.Now()

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode project")
	}
	return os.WriteFile(path, data, 0o644)
}

// CameraModel parses the stored model name.
func (p *File) CameraModel() (calib.Model, error) {
	return calib.ParseModel(p.Model)
}

// AddImage records an image, relative to the project when possible.
// Duplicates are ignored.
func (p *File) AddImage(projectPath, imagePath string) {
	rel := relativeTo(projectPath, imagePath)
	for _, existing := range p.ImagePaths {
		if existing == rel {
			return
		}
	}
	p.ImagePaths = append(p.ImagePaths, rel)
	p.Modified = time.Now()
}

// RemoveImage forgets an image. It reports whether it was listed.
func (p *File) RemoveImage(projectPath, imagePath string) bool {
	rel := relativeTo(projectPath, imagePath)
	for i, existing := range p.ImagePaths {
		if existing == rel {
			p.ImagePaths = append(p.ImagePaths[:i], p.ImagePaths[i+1:]...)
			p.Modified = time.Now()
			return true
		}
	}
	return false
}

// GetImagePaths returns the absolute paths of every listed image.
func (p *File) GetImagePaths(projectPath string) []string {
	out := make([]string, len(p.ImagePaths))
	for i, rel := range p.ImagePaths {
		out[i] = absoluteFrom(projectPath, rel)
	}
	return out
}

// SetResultPath sets the saved result path (relative to project).
func (p *File) SetResultPath(projectPath, resultPath string) {
	p.ResultPath = relativeTo(projectPath, resultPath)
	p.Modified = time.Now()
}

// GetResultPath returns the absolute path to the result file. When none is
// set it defaults to <project name>_calibration.json next to the project.
func (p *File) GetResultPath(projectPath string) string {
	if p.ResultPath == "" {
		base := projectPath[:len(projectPath)-len(filepath.Ext(projectPath))]
		return base + "_calibration.json"
	}
	return absoluteFrom(projectPath, p.ResultPath)
}

func relativeTo(projectPath, path string) string {
	rel, err := filepath.Rel(filepath.Dir(projectPath), path)
	if err != nil {
		return path
	}
	return rel
}

func absoluteFrom(projectPath, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(filepath.Dir(projectPath), path)
}
