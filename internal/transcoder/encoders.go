package transcoder

import (
	"fmt"
	"strings"

	"fireshare/internal/logging"
)

// EncoderSpec describes one encoder configuration. The catalog specs below
// are shared and must not be modified.
type EncoderSpec struct {
	Name         string
	VideoCodec   string
	AudioCodec   string
	AudioBitrate string
	ExtraArgs    []string
}

// Preference selects the codec family tried by the encoder chain.
type Preference string

const (
	// PreferenceAuto tries H.264 first, then AV1.
	PreferenceAuto Preference = "auto"
	// PreferenceH264 only tries H.264 encoders.
	PreferenceH264 Preference = "h264"
	// PreferenceAV1 only tries AV1 encoders.
	PreferenceAV1 Preference = "av1"
)

// ParsePreference maps a settings value to a Preference. Unknown values
// resolve to PreferenceAuto.
func ParsePreference(s string) Preference {
	switch Preference(strings.ToLower(strings.TrimSpace(s))) {
	case PreferenceH264:
		return PreferenceH264
	case PreferenceAV1:
		return PreferenceAV1
	case PreferenceAuto, "":
		return PreferenceAuto
	default:
		logging.Warn("Unknown encoder preference %q, using auto", s)
		return PreferenceAuto
	}
}

var (
	// H264CPU is the universal software fallback.
	H264CPU = EncoderSpec{
		Name:         "H.264 CPU",
		VideoCodec:   "libx264",
		AudioCodec:   "aac",
		AudioBitrate: "128k",
		ExtraArgs:    []string{"-preset", "fast", "-crf", "23"},
	}

	// AV1CPU is the software AV1 encoder.
	AV1CPU = EncoderSpec{
		Name:         "AV1 CPU",
		VideoCodec:   "libaom-av1",
		AudioCodec:   "libopus",
		AudioBitrate: "96k",
		ExtraArgs:    []string{"-cpu-used", "4", "-crf", "30", "-b:v", "0"},
	}

	// H264NVENC is the NVIDIA hardware H.264 encoder.
	H264NVENC = EncoderSpec{
		Name:         "H.264 NVENC",
		VideoCodec:   "h264_nvenc",
		AudioCodec:   "aac",
		AudioBitrate: "128k",
		ExtraArgs:    []string{"-preset", "p4", "-cq:v", "23"},
	}

	// AV1NVENC is the NVIDIA hardware AV1 encoder (RTX 40 series and newer).
	AV1NVENC = EncoderSpec{
		Name:         "AV1 NVENC",
		VideoCodec:   "av1_nvenc",
		AudioCodec:   "libopus",
		AudioBitrate: "96k",
		ExtraArgs:    []string{"-preset", "p4", "-cq:v", "30"},
	}
)

// Candidates returns the encoders to try, in order, for the given mode and
// preference. H.264 comes before AV1 in auto mode.
func Candidates(useGPU bool, pref Preference) []EncoderSpec {
	switch pref {
	case PreferenceH264:
		if useGPU {
			return []EncoderSpec{H264NVENC, H264CPU}
		}
		return []EncoderSpec{H264CPU}
	case PreferenceAV1:
		if useGPU {
			return []EncoderSpec{AV1NVENC, AV1CPU}
		}
		return []EncoderSpec{AV1CPU}
	default:
		if useGPU {
			return []EncoderSpec{H264NVENC, AV1NVENC, H264CPU, AV1CPU}
		}
		return []EncoderSpec{H264CPU, AV1CPU}
	}
}

// Args builds the ffmpeg arguments for encoding src to out at height,
// preserving aspect ratio with an even width.
func (e EncoderSpec) Args(src, out string, height int) []string {
	args := make([]string, 0, 20+len(e.ExtraArgs))
	args = append(args, "-nostdin", "-v", "warning", "-stats", "-y", "-i", src)
	args = append(args, "-c:v", e.VideoCodec)
	args = append(args, e.ExtraArgs...)
	args = append(args, "-vf", fmt.Sprintf("scale=-2:%d", height))

	bitrate := e.AudioBitrate
	if bitrate == "" {
		bitrate = "128k"
	}
	args = append(args, "-c:a", e.AudioCodec, "-b:a", bitrate)
	args = append(args, out)
	return args
}

func encoderNames(specs []EncoderSpec) string {
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.Name
	}
	return strings.Join(names, ", ")
}
