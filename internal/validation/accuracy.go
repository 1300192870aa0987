package validation

import "github.com/sells-group/ntl-cli/internal/model"

// Accuracy derives overall, producer's and user's accuracy and Cohen's
// kappa from a confusion matrix. Any statistic with a zero denominator is 0.
func Accuracy(cm model.Confusion) model.Accuracy {
	total := float64(cm.Total())
	if total == 0 {
		return model.Accuracy{}
	}
	tp, fp, fn, tn := float64(cm.TP), float64(cm.FP), float64(cm.FN), float64(cm.TN)

	var a model.Accuracy
	a.Overall = (tp + tn) / total
	if tp+fn > 0 {
		a.Producers = tp / (tp + fn)
	}
	if tp+fp > 0 {
		a.Users = tp / (tp + fp)
	}

	pe := ((tp+fp)/total)*((tp+fn)/total) + ((fn+tn)/total)*((fp+tn)/total)
	if 1-pe > 0 {
		a.Kappa = (a.Overall - pe) / (1 - pe)
	}
	return a
}
