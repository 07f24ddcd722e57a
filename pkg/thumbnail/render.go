// Frontline Perception System
// Copyright (C) 2020-2025 TurbineOne LLC
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package thumbnail

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/asticode/go-astiav"
)

var (
	buffersrcFlags  = astiav.NewBuffersrcFlags(astiav.BuffersrcFlagKeepRef)
	buffersinkFlags = astiav.NewBuffersinkFlags()
)

// maxDecodePackets bounds how far into a file we read looking for a frame
// the decoder can produce.
const maxDecodePackets = 512

// NoVideoStreamError means the container holds no video stream.
type NoVideoStreamError struct {
	Path string
}

func (e *NoVideoStreamError) Error() string {
	return "no video stream in [" + e.Path + "]"
}

// NoFrameError means no frame could be decoded from the video stream.
type NoFrameError struct {
	Path string
}

func (e *NoFrameError) Error() string {
	return "no decodable frame in [" + e.Path + "]"
}

type codecFindError struct {
	codec string
}

func (e *codecFindError) Error() string {
	return "codec not found: " + e.codec
}

type filterFindError struct {
	filter string
}

func (e *filterFindError) Error() string {
	return "filter not found: " + e.filter
}

// renderFirstFrame decodes the first video frame of path and returns it as
// a JPEG no wider than width.
func renderFirstFrame(path string, width int) ([]byte, error) {
	fc := astiav.AllocFormatContext()
	defer fc.Free()

	if err := fc.OpenInput(path, nil, nil); err != nil {
		return nil, fmt.Errorf("opening input failed: %w", err)
	}
	defer fc.CloseInput()

	if err := fc.FindStreamInfo(nil); err != nil {
		return nil, fmt.Errorf("finding stream info failed: %w", err)
	}

	var input *astiav.Stream

	for _, st := range fc.Streams() {
		if st.CodecParameters().MediaType() == astiav.MediaTypeVideo {
			input = st

			break
		}
	}

	if input == nil {
		return nil, &NoVideoStreamError{Path: path}
	}

	decCodec := astiav.FindDecoder(input.CodecParameters().CodecID())
	if decCodec == nil {
		return nil, &codecFindError{input.CodecParameters().CodecID().Name()}
	}

	dec := astiav.AllocCodecContext(decCodec)
	defer dec.Free()

	if err := input.CodecParameters().ToCodecContext(dec); err != nil {
		return nil, fmt.Errorf("copying codec parameters failed: %w", err)
	}

	dec.SetFramerate(fc.GuessFrameRate(input, nil))

	if err := dec.Open(decCodec, nil); err != nil {
		return nil, fmt.Errorf("opening decoder context failed: %w", err)
	}

	frame := astiav.AllocFrame()
	defer frame.Free()

	if err := decodeFirstFrame(fc, dec, input.Index(), frame); err != nil {
		if errors.Is(err, astiav.ErrEof) {
			return nil, &NoFrameError{Path: path}
		}

		return nil, err
	}

	timeBase := input.TimeBase()
	if timeBase.Num() == 0 {
		timeBase = astiav.NewRational(1, 25) //nolint:mnd // Any valid base works for one frame.
	}

	return encodeJPEG(dec, frame, timeBase, width)
}

// decodeFirstFrame reads packets of stream index until the decoder yields a
// frame. It returns astiav.ErrEof if the stream ends first.
func decodeFirstFrame(fc *astiav.FormatContext, dec *astiav.CodecContext, index int, frame *astiav.Frame) error {
	pkt := astiav.AllocPacket()
	defer pkt.Free()

	for i := 0; i < maxDecodePackets; i++ {
		pkt.Unref()

		if err := fc.ReadFrame(pkt); err != nil {
			if !errors.Is(err, astiav.ErrEof) {
				return fmt.Errorf("input read failed: %w", err)
			}

			// Drain whatever the decoder is holding on to.
			_ = dec.SendPacket(nil)

			return dec.ReceiveFrame(frame)
		}

		if pkt.StreamIndex() != index {
			continue
		}

		if err := dec.SendPacket(pkt); err != nil {
			// Leading packets of a cut recording may not decode on their own.
			continue
		}

		err := dec.ReceiveFrame(frame)
		if err == nil {
			return nil
		}

		if !errors.Is(err, astiav.ErrEagain) {
			return fmt.Errorf("receiving frame from decoder failed: %w", err)
		}
	}

	return astiav.ErrEof
}

// encodeJPEG scales frame down to width and encodes it with the MJPEG encoder.
//
//nolint:funlen // Long but linear.
func encodeJPEG(dec *astiav.CodecContext, frame *astiav.Frame, timeBase astiav.Rational, width int) ([]byte, error) {
	encCodec := astiav.FindEncoder(astiav.CodecIDMjpeg)
	if encCodec == nil {
		return nil, &codecFindError{"mjpeg"}
	}

	pixFmt := dec.PixelFormat()
	if v := encCodec.PixelFormats(); len(v) > 0 {
		pixFmt = v[0]
	}

	buffersrc := astiav.FindFilterByName("buffer")
	if buffersrc == nil {
		return nil, &filterFindError{"buffer"}
	}

	buffersink := astiav.FindFilterByName("buffersink")
	if buffersink == nil {
		return nil, &filterFindError{"buffersink"}
	}

	if width <= 0 || width > frame.Width() {
		width = frame.Width()
	}

	args := astiav.FilterArgs{
		"pix_fmt":      strconv.Itoa(int(frame.PixelFormat())),
		"pixel_aspect": dec.SampleAspectRatio().String(),
		"time_base":    timeBase.String(),
		"video_size":   strconv.Itoa(frame.Width()) + "x" + strconv.Itoa(frame.Height()),
	}

	// -2 keeps the aspect ratio with an even height, which yuv420 needs.
	content := fmt.Sprintf("scale=%d:-2,format=pix_fmts=%s", width, pixFmt.Name())

	graph := astiav.AllocFilterGraph()
	defer graph.Free()

	srcCtx, err := graph.NewFilterContext(buffersrc, "in", args)
	if err != nil {
		return nil, fmt.Errorf("creating buffersrc context failed: %w", err)
	}

	sinkCtx, err := graph.NewFilterContext(buffersink, "out", nil)
	if err != nil {
		return nil, fmt.Errorf("creating buffersink context failed: %w", err)
	}

	inputs := astiav.AllocFilterInOut()
	defer inputs.Free()

	inputs.SetName("out")
	inputs.SetFilterContext(sinkCtx)
	inputs.SetPadIdx(0)
	inputs.SetNext(nil)

	outputs := astiav.AllocFilterInOut()
	defer outputs.Free()

	outputs.SetName("in")
	outputs.SetFilterContext(srcCtx)
	outputs.SetPadIdx(0)
	outputs.SetNext(nil)

	if err = graph.Parse(content, inputs, outputs); err != nil {
		return nil, fmt.Errorf("parsing filter failed: %w", err)
	}

	if err = graph.Configure(); err != nil {
		return nil, fmt.Errorf("configuring filter failed: %w", err)
	}

	if err = srcCtx.BuffersrcAddFrame(frame, buffersrcFlags); err != nil {
		return nil, fmt.Errorf("buffersrc add frame failed: %w", err)
	}

	scaled := astiav.AllocFrame()
	defer scaled.Free()

	if err = sinkCtx.BuffersinkGetFrame(scaled, buffersinkFlags); err != nil {
		return nil, fmt.Errorf("buffersink get frame failed: %w", err)
	}

	scaled.SetPictureType(astiav.PictureTypeNone)

	enc := astiav.AllocCodecContext(encCodec)
	defer enc.Free()

	enc.SetPixelFormat(pixFmt)
	enc.SetSampleAspectRatio(scaled.SampleAspectRatio())
	enc.SetWidth(scaled.Width())
	enc.SetHeight(scaled.Height())
	enc.SetTimeBase(timeBase)
	// Ask the encoder for high quality output.
	enc.SetFlags(enc.Flags().Add(astiav.CodecContextFlagQscale))
	enc.SetQmin(1)

	if err = enc.Open(encCodec, nil); err != nil {
		return nil, fmt.Errorf("opening encoder context failed: %w", err)
	}

	if err = enc.SendFrame(scaled); err != nil {
		return nil, fmt.Errorf("sending frame to encoder failed: %w", err)
	}

	pkt := astiav.AllocPacket()
	defer pkt.Free()

	if err = enc.ReceivePacket(pkt); err != nil {
		return nil, fmt.Errorf("receiving packet from encoder failed: %w", err)
	}

	// The packet's buffer belongs to ffmpeg.
	return append([]byte(nil), pkt.Data()...), nil
}
