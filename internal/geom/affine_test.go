package geom

import (
	"math"
	"testing"
)

const epsilon = 1e-9

func approxVec(a, b Vec2) bool {
	return math.Abs(a.X-b.X) < epsilon && math.Abs(a.Y-b.Y) < epsilon
}

func approxAffine(a, b Affine) bool {
	return math.Abs(a.A-b.A) < epsilon && math.Abs(a.B-b.B) < epsilon &&
		math.Abs(a.C-b.C) < epsilon && math.Abs(a.D-b.D) < epsilon &&
		math.Abs(a.Tx-b.Tx) < epsilon && math.Abs(a.Ty-b.Ty) < epsilon
}

// sample transforms exercising every term of the matrix
func sampleTransforms() []Affine {
	return []Affine{
		Identity(),
		Translation(V(3, -7)),
		Scale(V(2, -0.5)),
		Rotation(0.7),
		FlipY(480),
		Chain(Translation(V(10, 20)), Scale(V(1.5, -1.5)), Rotation(math.Pi/3), Translation(V(-128, -128))),
		{A: 1.2, B: -0.3, Tx: 4, C: 0.8, D: 2.1, Ty: -9},
	}
}

func TestCompose_Identity(t *testing.T) {
	for i, tr := range sampleTransforms() {
		if got := Compose(Identity(), tr); !approxAffine(got, tr) {
			t.Errorf("transform %d: Compose(I, T) = %+v, want %+v", i, got, tr)
		}
		if got := Compose(tr, Identity()); !approxAffine(got, tr) {
			t.Errorf("transform %d: Compose(T, I) = %+v, want %+v", i, got, tr)
		}
	}
}

func TestCompose_ApplyOrder(t *testing.T) {
	points := []Vec2{V(0, 0), V(1, 0), V(0, 1), V(-3.5, 12.25), V(224, 224)}
	ts := sampleTransforms()

	for i, a := range ts {
		for j, b := range ts {
			ab := Compose(a, b)
			for _, p := range points {
				want := a.Apply(b.Apply(p))
				if got := ab.Apply(p); !approxVec(got, want) {
					t.Errorf("a=%d b=%d p=%v: Compose(a,b).Apply = %v, want %v", i, j, p, got, want)
				}
			}
		}
	}
}

func TestCompose_Associative(t *testing.T) {
	ts := sampleTransforms()
	for i := 0; i+2 < len(ts); i++ {
		a, b, c := ts[i], ts[i+1], ts[i+2]
		left := Compose(Compose(a, b), c)
		right := Compose(a, Compose(b, c))
		if !approxAffine(left, right) {
			t.Errorf("(ab)c != a(bc) for %d,%d,%d: %+v vs %+v", i, i+1, i+2, left, right)
		}
	}
}

func TestCompose_NotCommutative(t *testing.T) {
	tr := Translation(V(5, 0))
	sc := Scale(V(2, 2))

	p := V(1, 1)
	ts := Compose(tr, sc).Apply(p) // scale then translate
	st := Compose(sc, tr).Apply(p) // translate then scale

	if !approxVec(ts, V(7, 2)) {
		t.Errorf("translate after scale = %v, want (7,2)", ts)
	}
	if !approxVec(st, V(12, 2)) {
		t.Errorf("scale after translate = %v, want (12,2)", st)
	}
}

func TestChain(t *testing.T) {
	a, b, c := Translation(V(1, 2)), Rotation(0.3), Scale(V(2, 3))

	if got, want := Chain(a, b, c), Compose(a, Compose(b, c)); !approxAffine(got, want) {
		t.Errorf("Chain(a,b,c) = %+v, want %+v", got, want)
	}
	if got := Chain(); !approxAffine(got, Identity()) {
		t.Errorf("Chain() = %+v, want identity", got)
	}
}

func TestRotation(t *testing.T) {
	r := Rotation(math.Pi / 2)
	if got := r.Apply(V(1, 0)); !approxVec(got, V(0, 1)) {
		t.Errorf("rotating (1,0) by pi/2 = %v, want (0,1)", got)
	}
}

func TestFlipY(t *testing.T) {
	f := FlipY(100)
	if got := f.Apply(V(5, 0)); !approxVec(got, V(5, 100)) {
		t.Errorf("FlipY(100) of (5,0) = %v, want (5,100)", got)
	}
	if got := Compose(f, f); !approxAffine(got, Identity()) {
		t.Errorf("FlipY twice = %+v, want identity", got)
	}
}

func TestInvert(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		for i, tr := range sampleTransforms() {
			inv, ok := tr.Invert()
			if !ok {
				t.Fatalf("transform %d unexpectedly singular", i)
			}
			if got := Compose(inv, tr); !approxAffine(got, Identity()) {
				t.Errorf("transform %d: inv*T = %+v, want identity", i, got)
			}
		}
	})

	t.Run("singular", func(t *testing.T) {
		if _, ok := Scale(V(0, 1)).Invert(); ok {
			t.Error("expected zero scale to be singular")
		}
		if _, ok := (Affine{}).Invert(); ok {
			t.Error("expected zero transform to be singular")
		}
	})
}

func TestApply_PropagatesNaN(t *testing.T) {
	got := Translation(V(1, 1)).Apply(V(math.NaN(), 2))
	if !math.IsNaN(got.X) {
		t.Errorf("expected NaN to propagate, got %v", got.X)
	}
	if got.Y != 3 {
		t.Errorf("expected y=3, got %v", got.Y)
	}
}

func TestDistance(t *testing.T) {
	if d := Distance(V(1, 1), V(4, 5)); math.Abs(d-5) > epsilon {
		t.Errorf("Distance = %f, want 5", d)
	}
}
