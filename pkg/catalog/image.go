package catalog

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math/rand/v2"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"

	"github.com/user/shardbench/pkg/pipeline"
	"github.com/user/shardbench/pkg/schema"
)

// imagePipeline generates encoded images of varying size and turns
// them into normalized, labelled examples:
//
//	generate-images > decode-image > resize > normalize > to-example
func imagePipeline(o Options) (pipeline.Pipeline, error) {
	var encode func(*bytes.Buffer, image.Image) error
	switch o.ImageFormat {
	case "png":
		encode = func(b *bytes.Buffer, m image.Image) error { return png.Encode(b, m) }
	case "bmp":
		encode = func(b *bytes.Buffer, m image.Image) error { return bmp.Encode(b, m) }
	default:
		return nil, fmt.Errorf("catalog: image format %q is not png or bmp", o.ImageFormat)
	}

	encoded := schema.Of(schema.String)
	decoded := schema.Of(schema.Uint8, schema.Unknown, schema.Unknown, 3)
	resized := schema.Of(schema.Uint8, o.TargetSize, o.TargetSize, 3)
	normalized := schema.Of(schema.Float32, o.TargetSize, o.TargetSize, 3)
	example := schema.Fields(map[string]schema.Spec{
		"image": schema.TensorSpec(schema.Float32, o.TargetSize, o.TargetSize, 3),
		"label": schema.TensorSpec(schema.Int32),
	})

	generate := pipeline.Generate(o.SampleCount, func(i int) (any, error) {
		m := syntheticImage(o.Seed, i, o.ImageSize)
		var buf bytes.Buffer
		if err := encode(&buf, m); err != nil {
			return nil, fmt.Errorf("encode image %d: %w", i, err)
		}
		return schema.Scalar(buf.Bytes()), nil
	})

	return pipeline.Pipeline{
		pipeline.SourceStep("generate-images", encoded, generate),
		pipeline.TransformStep("decode-image", encoded, decoded, pipeline.TransformFunc(decodeImage)),
		pipeline.TransformStep("resize", decoded, resized, pipeline.TransformFunc(func(v any) (any, error) {
			return resize(v, o.TargetSize)
		})),
		pipeline.TransformStep("normalize", resized, normalized, pipeline.TransformFunc(normalize)),
		pipeline.TransformStep("to-example", normalized, example, pipeline.TransformFunc(func(v any) (any, error) {
			return toExample(v)
		})),
	}, nil
}

// syntheticImage draws a noisy gradient. Edge lengths vary by up to a
// quarter of size so that the resize step has work to do.
func syntheticImage(seed uint64, i, size int) *image.RGBA {
	rng := rand.New(rand.NewPCG(seed, uint64(i)))
	w := size - size/4 + rng.IntN(size/2+1)
	h := size - size/4 + rng.IntN(size/2+1)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	base := uint8(rng.IntN(256))

	m := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m.SetRGBA(x, y, color.RGBA{
				R: uint8(x*255/w) + base,
				G: uint8(y*255/h) ^ base,
				B: uint8(rng.IntN(256)),
				A: 255,
			})
		}
	}
	return m
}

func decodeImage(v any) (any, error) {
	t := v.(*schema.Tensor)
	bs, ok := t.ByteStrings()
	if !ok || len(bs) != 1 {
		return nil, fmt.Errorf("decode-image: want a scalar byte string")
	}
	m, _, err := image.Decode(bytes.NewReader(bs[0]))
	if err != nil {
		return nil, fmt.Errorf("decode-image: %w", err)
	}
	return imageTensor(m)
}

// imageTensor converts an image to a uint8 [height width 3] tensor.
func imageTensor(m image.Image) (*schema.Tensor, error) {
	b := m.Bounds()
	rgba, ok := m.(*image.RGBA)
	if !ok || b.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), m, b.Min, draw.Src)
	}

	w, h := rgba.Bounds().Dx(), rgba.Bounds().Dy()
	out := make([]uint8, 0, w*h*3)
	for y := 0; y < h; y++ {
		row := rgba.Pix[y*rgba.Stride : y*rgba.Stride+w*4]
		for x := 0; x < w; x++ {
			out = append(out, row[x*4], row[x*4+1], row[x*4+2])
		}
	}
	return schema.FromSlice([]int{h, w, 3}, out)
}

func tensorImage(t *schema.Tensor) (*image.RGBA, error) {
	if len(t.Shape) != 3 || t.Shape[2] != 3 {
		return nil, fmt.Errorf("want [h w 3], got %v", t.Shape)
	}
	px, ok := schema.Values[uint8](t)
	if !ok {
		return nil, fmt.Errorf("want uint8, got %s", t.DType)
	}
	h, w := t.Shape[0], t.Shape[1]
	m := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < w*h; i++ {
		copy(m.Pix[i*4:], px[i*3:i*3+3])
		m.Pix[i*4+3] = 255
	}
	return m, nil
}

func resize(v any, size int) (any, error) {
	src, err := tensorImage(v.(*schema.Tensor))
	if err != nil {
		return nil, fmt.Errorf("resize: %w", err)
	}
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return imageTensor(dst)
}

func normalize(v any) (any, error) {
	t := v.(*schema.Tensor)
	px, ok := schema.Values[uint8](t)
	if !ok {
		return nil, fmt.Errorf("normalize: want uint8, got %s", t.DType)
	}
	out := make([]float32, len(px))
	for i, p := range px {
		out[i] = float32(p) / 255
	}
	return schema.FromSlice(t.Shape, out)
}

// toExample attaches a label derived from the image content.
func toExample(v any) (schema.Example, error) {
	t := v.(*schema.Tensor)
	px, _ := schema.Values[float32](t)
	var sum float32
	for _, p := range px {
		sum += p
	}
	label := int32(0)
	if len(px) > 0 && sum/float32(len(px)) > 0.5 {
		label = 1
	}
	return schema.Example{
		"image": t,
		"label": schema.MustFromSlice([]int{}, []int32{label}),
	}, nil
}
