// Package replay reads frames from a recorded video so the extractor can run
// offline on the same footage a live session would see.
package replay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"strconv"
	"sync"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"jordanella.com/runner-collector/internal/cv"
	"jordanella.com/runner-collector/internal/logging"
)

// videoProbe holds the ffprobe fields we read
type videoProbe struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		NbFrames  string `json:"nb_frames"`
	} `json:"streams"`
}

// VideoInfo describes the first video stream of a file
type VideoInfo struct {
	Width  int
	Height int
	Frames int // 0 when the container does not record it
}

// Probe reads the video stream dimensions with ffprobe
func Probe(path string) (VideoInfo, error) {
	out, err := ffmpeg.Probe(path)
	if err != nil {
		return VideoInfo{}, fmt.Errorf("ffprobe error: %w", err)
	}
	return parseProbe(out)
}

func parseProbe(data string) (VideoInfo, error) {
	var probe videoProbe
	if err := json.Unmarshal([]byte(data), &probe); err != nil {
		return VideoInfo{}, fmt.Errorf("json unmarshal error: %w", err)
	}

	for _, stream := range probe.Streams {
		if stream.CodecType != "video" {
			continue
		}
		if stream.Width <= 0 || stream.Height <= 0 {
			return VideoInfo{}, fmt.Errorf("video stream has no size")
		}
		info := VideoInfo{Width: stream.Width, Height: stream.Height}
		if n, err := strconv.Atoi(stream.NbFrames); err == nil {
			info.Frames = n
		}
		return info, nil
	}
	return VideoInfo{}, fmt.Errorf("no video stream found")
}

// VideoSource decodes a video to raw RGB frames through an ffmpeg pipe and
// serves them one per Capture call. It implements cv.Capturer.
type VideoSource struct {
	info   VideoInfo
	pr     *io.PipeReader
	buf    []byte
	frames int
	done   chan error
	logger *logging.Logger
	mu     sync.Mutex
}

// Open starts decoding path. fps > 0 resamples the video to that rate.
func Open(ctx context.Context, path string, fps int) (*VideoSource, error) {
	info, err := Probe(path)
	if err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()

	kwargs := ffmpeg.KwArgs{
		"format":  "rawvideo",
		"pix_fmt": "rgb24",
	}
	if fps > 0 {
		kwargs["r"] = strconv.Itoa(fps)
	}

	cmd := ffmpeg.Input(path).
		Output("pipe:1", kwargs).
		WithOutput(pw).
		WithErrorOutput(io.Discard)
	cmd.Context = ctx

	vs := &VideoSource{
		info:   info,
		pr:     pr,
		buf:    make([]byte, info.Width*info.Height*3),
		done:   make(chan error, 1),
		logger: logging.NewLogger("Replay"),
	}

	go func() {
		err := cmd.Run()
		pw.CloseWithError(err)
		vs.done <- err
	}()

	vs.logger.InfoWithContext("Decoding video", map[string]interface{}{
		"path":   path,
		"width":  info.Width,
		"height": info.Height,
		"frames": info.Frames,
	})
	return vs, nil
}

// Info returns the probed stream description
func (v *VideoSource) Info() VideoInfo {
	return v.info
}

// Frames returns how many frames were served
func (v *VideoSource) Frames() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.frames
}

// Capture returns the next frame cropped to region when region lies inside it.
// The end of the video is reported as a capture failure.
func (v *VideoSource) Capture(region cv.Region) (image.Image, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, err := io.ReadFull(v.pr, v.buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: end of video after %d frames", cv.ErrCaptureFailure, v.frames)
		}
		return nil, fmt.Errorf("%w: %v", cv.ErrCaptureFailure, err)
	}
	v.frames++

	img := rgbToImage(v.buf, v.info.Width, v.info.Height)
	return cv.CropToRegion(img, region), nil
}

// Close stops the decoder and waits for it to exit
func (v *VideoSource) Close() error {
	v.pr.Close()
	err := <-v.done
	v.done <- err
	if err != nil && v.frames > 0 {
		// ffmpeg exits with a broken pipe when we stop reading early
		return nil
	}
	return err
}

// rgbToImage converts packed rgb24 into an RGBA image
func rgbToImage(buf []byte, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i, j := 0, 0; i+2 < len(buf) && j+3 < len(img.Pix); i, j = i+3, j+4 {
		img.Pix[j] = buf[i]
		img.Pix[j+1] = buf[i+1]
		img.Pix[j+2] = buf[i+2]
		img.Pix[j+3] = 0xff
	}
	return img
}
