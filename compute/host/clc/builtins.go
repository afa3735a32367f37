package clc

import (
	"math"

	"github.com/chewxy/math32"
	"github.com/gomlx/clvec/dtypes"
)

type builtin struct {
	minArgs, maxArgs int
	build            func(p *parser, pos Pos, args []*operand) *operand
}

var builtins map[string]builtin

// unsupportedBuiltins are known OpenCL functions that can't be run by the sequential work-item executor.
var unsupportedBuiltins = map[string]bool{
	"barrier": true, "mem_fence": true, "read_mem_fence": true, "write_mem_fence": true,
	"work_group_barrier": true, "printf": true, "async_work_group_copy": true,
	"atomic_add": true, "atomic_inc": true, "atomic_sub": true, "atomic_xchg": true,
	"atom_add": true, "atom_inc": true,
}

var predefinedConstants = map[string]struct {
	dt dtypes.DType
	i  int64
	f  float64
}{
	"true":        {dt: dtypes.Int32, i: 1},
	"false":       {dt: dtypes.Int32, i: 0},
	"CHAR_BIT":    {dt: dtypes.Int32, i: 8},
	"INT_MAX":     {dt: dtypes.Int32, i: math.MaxInt32},
	"INT_MIN":     {dt: dtypes.Int32, i: math.MinInt32},
	"UINT_MAX":    {dt: dtypes.Uint32, i: math.MaxUint32},
	"LONG_MAX":    {dt: dtypes.Int64, i: math.MaxInt64},
	"LONG_MIN":    {dt: dtypes.Int64, i: math.MinInt64},
	"FLT_MAX":     {dt: dtypes.Float32, f: math.MaxFloat32},
	"FLT_MIN":     {dt: dtypes.Float32, f: 0x1p-126},
	"FLT_EPSILON": {dt: dtypes.Float32, f: 0x1p-23},
	"MAXFLOAT":    {dt: dtypes.Float32, f: math.MaxFloat32},
	"M_PI_F":      {dt: dtypes.Float32, f: float64(float32(math.Pi))},
	"M_E_F":       {dt: dtypes.Float32, f: float64(float32(math.E))},
	"M_PI":        {dt: dtypes.Float64, f: math.Pi},
	"M_E":         {dt: dtypes.Float64, f: math.E},
}

func init() {
	builtins = map[string]builtin{
		"get_global_id":     {1, 1, workItemFunc(func(f *frame, d int) int { return f.gid[d] }, 0)},
		"get_local_id":      {1, 1, workItemFunc(func(f *frame, d int) int { return f.lid[d] }, 0)},
		"get_group_id":      {1, 1, workItemFunc(func(f *frame, d int) int { return f.group[d] }, 0)},
		"get_global_size":   {1, 1, workItemFunc(func(f *frame, d int) int { return f.nd.Global[d] }, 1)},
		"get_local_size":    {1, 1, workItemFunc(func(f *frame, d int) int { return f.nd.Local[d] }, 1)},
		"get_num_groups":    {1, 1, workItemFunc(func(f *frame, d int) int { return f.nd.Global[d] / f.nd.Local[d] }, 1)},
		"get_global_offset": {1, 1, workItemFunc(func(*frame, int) int { return 0 }, 0)},
		"get_work_dim": {0, 0, func(_ *parser, pos Pos, _ []*operand) *operand {
			return &operand{typ: ctype{dt: dtypes.Uint32}, pos: pos, i: func(f *frame) int64 { return int64(f.nd.Dims) }}
		}},

		"min":   {2, 2, buildMinMax(false)},
		"max":   {2, 2, buildMinMax(true)},
		"abs":   {1, 1, buildAbs},
		"clamp": {3, 3, buildClamp},
		"mad":   {3, 3, buildMad},
		"fma":   {3, 3, buildMad},

		"sqrt":  {1, 1, floatUnary(math32.Sqrt, math.Sqrt)},
		"rsqrt": {1, 1, floatUnary(func(x float32) float32 { return 1 / math32.Sqrt(x) }, func(x float64) float64 { return 1 / math.Sqrt(x) })},
		"fabs":  {1, 1, floatUnary(math32.Abs, math.Abs)},
		"floor": {1, 1, floatUnary(math32.Floor, math.Floor)},
		"ceil":  {1, 1, floatUnary(math32.Ceil, math.Ceil)},
		"round": {1, 1, floatUnary(math32.Round, math.Round)},
		"trunc": {1, 1, floatUnary(math32.Trunc, math.Trunc)},
		"exp":   {1, 1, floatUnary(math32.Exp, math.Exp)},
		"exp2":  {1, 1, floatUnary(math32.Exp2, math.Exp2)},
		"log":   {1, 1, floatUnary(math32.Log, math.Log)},
		"log2":  {1, 1, floatUnary(math32.Log2, math.Log2)},
		"log10": {1, 1, floatUnary(math32.Log10, math.Log10)},
		"sin":   {1, 1, floatUnary(math32.Sin, math.Sin)},
		"cos":   {1, 1, floatUnary(math32.Cos, math.Cos)},
		"tan":   {1, 1, floatUnary(math32.Tan, math.Tan)},
		"tanh":  {1, 1, floatUnary(math32.Tanh, math.Tanh)},
		"fmin":  {2, 2, floatBinary(math32.Min, math.Min)},
		"fmax":  {2, 2, floatBinary(math32.Max, math.Max)},
		"pow":   {2, 2, floatBinary(math32.Pow, math.Pow)},
		"fmod":  {2, 2, floatBinary(math32.Mod, math.Mod)},
		"atan2": {2, 2, floatBinary(math32.Atan2, math.Atan2)},
		"hypot": {2, 2, floatBinary(math32.Hypot, math.Hypot)},
	}
}

func (p *parser) parseCall(nameTok token) *operand {
	p.expect("(")
	var args []*operand
	if !p.accept(")") {
		for {
			args = append(args, p.parseAssign())
			if p.accept(")") {
				break
			}
			p.expect(",")
		}
	}
	name, pos := nameTok.text, nameTok.pos
	b, found := builtins[name]
	if !found {
		if unsupportedBuiltins[name] {
			p.errorf(pos, "function '%s' is not supported", name)
		} else if p.lookup(name) != nil {
			p.errorf(pos, "called object type '%s' is not a function", p.lookup(name).typ)
		} else {
			p.errorf(pos, "implicit declaration of function '%s' is invalid in OpenCL", name)
		}
		return p.bad(pos)
	}
	if len(args) < b.minArgs {
		p.errorf(pos, "too few arguments to function call '%s', expected %d, have %d", name, b.minArgs, len(args))
		return p.bad(pos)
	}
	if len(args) > b.maxArgs {
		p.errorf(pos, "too many arguments to function call '%s', expected %d, have %d", name, b.maxArgs, len(args))
		return p.bad(pos)
	}
	for _, arg := range args {
		if arg.bad {
			return p.bad(pos)
		}
		if arg.typ.ptr {
			p.errorf(arg.pos, "pointer argument '%s' to '%s' is not supported", arg.name, name)
			return p.bad(pos)
		}
	}
	return b.build(p, pos, args)
}

// workItemFunc builds the work-item query functions. For dimensions not used by the range they return
// outOfRange.
func workItemFunc(get func(f *frame, d int) int, outOfRange int64) func(*parser, Pos, []*operand) *operand {
	return func(p *parser, pos Pos, args []*operand) *operand {
		if args[0].typ.isFloat() {
			p.errorf(args[0].pos, "dimension index must be an integer")
			return p.bad(pos)
		}
		dim := args[0].i
		return &operand{typ: ctype{dt: dtypes.Uint64}, pos: pos, i: func(f *frame) int64 {
			d := dim(f)
			if d < 0 || d >= int64(f.nd.Dims) {
				return outOfRange
			}
			return int64(get(f, int(d)))
		}}
	}
}

// floatType returns the type used by the float math functions: double if any argument is double, float
// otherwise.
func floatType(args []*operand) dtypes.DType {
	for _, arg := range args {
		if arg.typ.dt == dtypes.Float64 {
			return dtypes.Float64
		}
	}
	return dtypes.Float32
}

func floatUnary(f32 func(float32) float32, f64 func(float64) float64) func(*parser, Pos, []*operand) *operand {
	return func(p *parser, pos Pos, args []*operand) *operand {
		t := floatType(args)
		xf := p.convert(args[0], t).f
		res := &operand{typ: ctype{dt: t}, pos: pos}
		if t == dtypes.Float64 {
			res.f = func(f *frame) float64 { return f64(xf(f)) }
		} else {
			res.f = func(f *frame) float64 { return float64(f32(float32(xf(f)))) }
		}
		return res
	}
}

func floatBinary(f32 func(x, y float32) float32, f64 func(x, y float64) float64) func(*parser, Pos, []*operand) *operand {
	return func(p *parser, pos Pos, args []*operand) *operand {
		t := floatType(args)
		xf, yf := p.convert(args[0], t).f, p.convert(args[1], t).f
		res := &operand{typ: ctype{dt: t}, pos: pos}
		if t == dtypes.Float64 {
			res.f = func(f *frame) float64 { return f64(xf(f), yf(f)) }
		} else {
			res.f = func(f *frame) float64 { return float64(f32(float32(xf(f)), float32(yf(f)))) }
		}
		return res
	}
}

func buildMad(p *parser, pos Pos, args []*operand) *operand {
	t := floatType(args)
	af, bf, cf := p.convert(args[0], t).f, p.convert(args[1], t).f, p.convert(args[2], t).f
	r := roundFunc(t)
	return &operand{typ: ctype{dt: t}, pos: pos, f: func(f *frame) float64 {
		v := af(f)*bf(f) + cf(f)
		if r != nil {
			v = r(v)
		}
		return v
	}}
}

// minMaxInt returns a function choosing the larger (or smaller) of two values of type t.
func minMaxInt(isMax bool, t dtypes.DType) func(a, b int64) int64 {
	less := intCompare("<", t == dtypes.Uint64)
	return func(a, b int64) int64 {
		if less(a, b) == isMax {
			return b
		}
		return a
	}
}

func minMaxFloat(isMax bool, t dtypes.DType) func(a, b float64) float64 {
	if t == dtypes.Float64 {
		if isMax {
			return math.Max
		}
		return math.Min
	}
	fn := math32.Min
	if isMax {
		fn = math32.Max
	}
	return func(a, b float64) float64 { return float64(fn(float32(a), float32(b))) }
}

func buildMinMax(isMax bool) func(*parser, Pos, []*operand) *operand {
	return func(p *parser, pos Pos, args []*operand) *operand {
		t := arithType(args[0].typ.dt, args[1].typ.dt)
		x, y := p.convert(args[0], t), p.convert(args[1], t)
		res := &operand{typ: ctype{dt: t}, pos: pos}
		if t.IsFloat() {
			fn := minMaxFloat(isMax, t)
			xf, yf := x.f, y.f
			res.f = func(f *frame) float64 { return fn(xf(f), yf(f)) }
		} else {
			fn := minMaxInt(isMax, t)
			xi, yi := x.i, y.i
			res.i = func(f *frame) int64 { return fn(xi(f), yi(f)) }
		}
		return res
	}
}

func buildClamp(p *parser, pos Pos, args []*operand) *operand {
	t := arithType(arithType(args[0].typ.dt, args[1].typ.dt), args[2].typ.dt)
	x, lo, hi := p.convert(args[0], t), p.convert(args[1], t), p.convert(args[2], t)
	res := &operand{typ: ctype{dt: t}, pos: pos}
	if t.IsFloat() {
		maxFn, minFn := minMaxFloat(true, t), minMaxFloat(false, t)
		xf, lof, hif := x.f, lo.f, hi.f
		res.f = func(f *frame) float64 { return minFn(maxFn(xf(f), lof(f)), hif(f)) }
	} else {
		maxFn, minFn := minMaxInt(true, t), minMaxInt(false, t)
		xi, loi, hii := x.i, lo.i, hi.i
		res.i = func(f *frame) int64 { return minFn(maxFn(xi(f), loi(f)), hii(f)) }
	}
	return res
}

func buildAbs(p *parser, pos Pos, args []*operand) *operand {
	t := promote(args[0].typ.dt)
	if t.IsFloat() {
		return floatUnary(math32.Abs, math.Abs)(p, pos, args)
	}
	x := p.convert(args[0], t)
	if t.IsUnsigned() {
		x.pos = pos
		return x
	}
	xi := x.i
	w := wrapFunc(t)
	return &operand{typ: ctype{dt: t}, pos: pos, i: func(f *frame) int64 {
		v := xi(f)
		if v < 0 {
			return wrapOrSelf(w, -v)
		}
		return v
	}}
}
