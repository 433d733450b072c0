package inference

import "math"

// ArgMaxFilter reduces the raw detector heads to the best-scoring anchor.
// boxes holds BoxValues regressors per anchor and scores one logit per anchor;
// the returned score is the sigmoid of the winning logit. NaN logits never
// win; if every logit is NaN the score is NaN.
func ArgMaxFilter(boxes, scores []float32) (DetectorOutput, error) {
	n := len(scores)
	if n == 0 {
		return DetectorOutput{}, &ShapeError{Output: "scores", Want: 1, Got: 0}
	}
	if len(boxes) < n*BoxValues {
		return DetectorOutput{}, &ShapeError{Output: "boxes", Want: n * BoxValues, Got: len(boxes)}
	}

	best := -1
	for i, s := range scores {
		if math.IsNaN(float64(s)) {
			continue
		}
		if best < 0 || s > scores[best] {
			best = i
		}
	}
	if best < 0 {
		best = 0
	}

	out := DetectorOutput{
		AnchorIndex: best,
		Score:       sigmoid(float64(scores[best])),
	}
	copy(out.Box[:], boxes[best*BoxValues:(best+1)*BoxValues])
	return out, nil
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
