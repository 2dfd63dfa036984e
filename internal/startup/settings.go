package startup

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"fireshare/internal/filesystem"
	"fireshare/internal/logging"
	"fireshare/internal/transcoder"
)

// SettingsFileName is the UI-managed settings file in the data directory.
const SettingsFileName = "config.json"

// TranscodeSettings are the transcoding options editable from the UI.
type TranscodeSettings struct {
	EncoderPreference transcoder.Preference
	Enable1080p       bool
	Enable720p        bool
	Enable480p        bool
	AutoTranscode     bool
}

// DefaultTranscodeSettings enables every resolution with automatic
// encoder selection.
func DefaultTranscodeSettings() TranscodeSettings {
	return TranscodeSettings{
		EncoderPreference: transcoder.PreferenceAuto,
		Enable1080p:       true,
		Enable720p:        true,
		Enable480p:        true,
		AutoTranscode:     true,
	}
}

// settingsFile mirrors the transcoding section of config.json. Pointers
// tell an absent key from false.
type settingsFile struct {
	Transcoding struct {
		EncoderPreference *string `json:"encoder_preference"`
		Enable1080p       *bool   `json:"enable_1080p"`
		Enable720p        *bool   `json:"enable_720p"`
		Enable480p        *bool   `json:"enable_480p"`
		AutoTranscode     *bool   `json:"auto_transcode"`
	} `json:"transcoding"`
}

// LoadTranscodeSettings reads dataDir/config.json. A missing file yields
// the defaults; absent keys keep their defaults.
func LoadTranscodeSettings(dataDir string) (TranscodeSettings, error) {
	settings := DefaultTranscodeSettings()
	path := filepath.Join(dataDir, SettingsFileName)

	data, err := filesystem.ReadFileWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Debug("No %s, using default transcode settings", path)
			return settings, nil
		}
		return settings, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var file settingsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return settings, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	t := file.Transcoding
	if t.EncoderPreference != nil {
		settings.EncoderPreference = transcoder.ParsePreference(*t.EncoderPreference)
	}
	setBool(&settings.Enable1080p, t.Enable1080p)
	setBool(&settings.Enable720p, t.Enable720p)
	setBool(&settings.Enable480p, t.Enable480p)
	setBool(&settings.AutoTranscode, t.AutoTranscode)

	return settings, nil
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

// Resolutions returns the enabled heights, highest first. The result is
// never nil, so "all disabled" is distinct from "use the defaults".
func (s TranscodeSettings) Resolutions() []int {
	heights := []int{}
	if s.Enable1080p {
		heights = append(heights, 1080)
	}
	if s.Enable720p {
		heights = append(heights, 720)
	}
	if s.Enable480p {
		heights = append(heights, 480)
	}
	return heights
}
