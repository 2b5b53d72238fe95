// Package core provides the data model shared by the runner: locators,
// element handles, the error taxonomy and scenario results.
package core

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Attachment represents a debug artifact captured during a scenario
type Attachment struct {
	Name        string `json:"name"`        // Descriptive name: screenshot, hierarchy
	ContentType string `json:"contentType"` // MIME type: image/png, application/xml
	Path        string `json:"path"`        // File path of the written artifact
}

// Common attachment names
const (
	AttachmentScreenshot = "screenshot"
	AttachmentHierarchy  = "hierarchy"
)

// Common content types
const (
	ContentTypePNG = "image/png"
	ContentTypeXML = "application/xml"
)

// NewScreenshotAttachment creates a screenshot attachment
func NewScreenshotAttachment(path string) Attachment {
	return Attachment{
		Name:        AttachmentScreenshot,
		ContentType: ContentTypePNG,
		Path:        path,
	}
}

// NewHierarchyAttachment creates a page source attachment
func NewHierarchyAttachment(path string) Attachment {
	return Attachment{
		Name:        AttachmentHierarchy,
		ContentType: ContentTypeXML,
		Path:        path,
	}
}

// ArtifactConfig controls when and what artifacts are captured
type ArtifactConfig struct {
	Dir              string `yaml:"dir" json:"dir"`
	CaptureOnFailure bool   `yaml:"onFailure" json:"onFailure"` // Default: true
	CaptureOnSuccess bool   `yaml:"onSuccess" json:"onSuccess"` // Default: false
	Hierarchy        bool   `yaml:"hierarchy" json:"hierarchy"` // Default: false
}

// DefaultArtifactConfig returns sensible defaults for artifact capture
func DefaultArtifactConfig() ArtifactConfig {
	return ArtifactConfig{
		Dir:              "screenshots",
		CaptureOnFailure: true,
		CaptureOnSuccess: false,
		Hierarchy:        false,
	}
}

// ShouldCapture returns true if artifacts should be captured for the given status
func (c ArtifactConfig) ShouldCapture(status Status) bool {
	switch status {
	case StatusFailed, StatusErrored:
		return c.CaptureOnFailure
	case StatusPassed:
		return c.CaptureOnSuccess
	default:
		return false
	}
}

// ArtifactName builds a file name like "all-icons-clickable_failed_20240102-150405.png".
func ArtifactName(scenario string, status Status, at time.Time, ext string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, scenario)
	return fmt.Sprintf("%s_%s_%s%s", name, status, at.Format("20060102-150405"), ext)
}

// ArtifactPath joins the artifact directory with the run ID subdirectory.
func (c ArtifactConfig) ArtifactPath(runID string) string {
	if runID == "" {
		return c.Dir
	}
	return filepath.Join(c.Dir, runID)
}
