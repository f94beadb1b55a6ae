package catalog

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/user/shardbench/pkg/pipeline"
	"github.com/user/shardbench/pkg/schema"
)

// tensorPipeline generates random matrices of Rows x Cols values and
// standardizes them:
//
//	create-dataset-<dtype> > identity > cast-float32 > standardize
func tensorPipeline(o Options) (pipeline.Pipeline, error) {
	dtype, err := schema.ParseDType(o.DType)
	if err != nil {
		return nil, err
	}
	if dtype != schema.Float32 && dtype != schema.Uint8 {
		return nil, fmt.Errorf("catalog: synthetic tensors are float32 or uint8, not %s", dtype)
	}

	raw := schema.Of(dtype, schema.Unknown, o.Cols)
	f32 := schema.Of(schema.Float32, schema.Unknown, o.Cols)
	shape := []int{o.Rows, o.Cols}

	create := pipeline.Generate(o.SampleCount, func(i int) (any, error) {
		rng := rand.New(rand.NewPCG(o.Seed, uint64(i)))
		n := o.Rows * o.Cols
		if dtype == schema.Uint8 {
			v := make([]uint8, n)
			for j := range v {
				v[j] = uint8(rng.IntN(255))
			}
			return schema.FromSlice(shape, v)
		}
		v := make([]float32, n)
		for j := range v {
			v[j] = float32(-(1<<15) + rng.Float64()*(1<<16 - 1))
		}
		return schema.FromSlice(shape, v)
	})

	return pipeline.Pipeline{
		pipeline.SourceStep("create-dataset-"+dtype.String(), raw, create),
		pipeline.TransformStep("identity", raw, raw, pipeline.TransformFunc(func(v any) (any, error) {
			return v, nil
		})),
		pipeline.TransformStep("cast-float32", raw, f32, pipeline.TransformFunc(castFloat32)),
		pipeline.TransformStep("standardize", f32, f32, pipeline.TransformFunc(standardize)),
	}, nil
}

func castFloat32(v any) (any, error) {
	t := v.(*schema.Tensor)
	switch t.DType {
	case schema.Float32:
		return t, nil
	case schema.Uint8:
		in, _ := schema.Values[uint8](t)
		out := make([]float32, len(in))
		for i, x := range in {
			out[i] = float32(x)
		}
		return schema.FromSlice(t.Shape, out)
	default:
		return nil, fmt.Errorf("cast-float32: unsupported dtype %s", t.DType)
	}
}

// standardize shifts values to zero mean and unit variance. A constant
// tensor becomes all zeros.
func standardize(v any) (any, error) {
	t := v.(*schema.Tensor)
	in, ok := schema.Values[float32](t)
	if !ok {
		return nil, fmt.Errorf("standardize: want float32, got %s", t.DType)
	}
	if len(in) == 0 {
		return t, nil
	}

	var mean float64
	for i, x := range in {
		mean += (float64(x) - mean) / float64(i+1)
	}
	var ss float64
	for _, x := range in {
		d := float64(x) - mean
		ss += d * d
	}
	std := math.Sqrt(ss / float64(len(in)))

	out := make([]float32, len(in))
	if std > 0 {
		for i, x := range in {
			out[i] = float32((float64(x) - mean) / std)
		}
	}
	return schema.FromSlice(t.Shape, out)
}
