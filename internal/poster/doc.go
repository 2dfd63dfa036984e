// Package poster writes the still image shown for each video before it
// plays.
//
// A frame is extracted with ffmpeg at a configurable fraction of the
// video's duration (THUMBNAIL_VIDEO_LOCATION), fitted within 1920x1080 and
// saved as derived/<id>/poster.jpg under the processed directory. Existing
// posters are kept unless regeneration is requested.
package poster
