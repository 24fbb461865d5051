package reconcile

import "github.com/rcliao/insight-sync/internal/model"

// Merge combines explicit candidates with overlay insights, keeping one entry
// per exact text. On a text conflict the overlay entry wins and takes the
// explicit entry's position; remaining overlay entries follow.
func Merge(explicit, pending []model.Insight) []model.Insight {
	byText := make(map[string]model.Insight, len(pending))
	for _, in := range pending {
		if _, dup := byText[in.Text]; !dup {
			byText[in.Text] = in
		}
	}

	var batch []model.Insight
	seen := make(map[string]bool, len(explicit)+len(pending))
	add := func(in model.Insight) {
		if seen[in.Text] {
			return
		}
		seen[in.Text] = true
		batch = append(batch, in)
	}

	for _, in := range explicit {
		if ov, ok := byText[in.Text]; ok {
			in = ov
		}
		add(in)
	}
	for _, in := range pending {
		add(in)
	}
	return batch
}
