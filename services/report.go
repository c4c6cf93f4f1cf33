package services

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"app-reviews-pipeline/models"
)

const dateLayout = "2006-01-02"

// Print writes the run report and insight summary in a terminal-friendly layout.
func (s *InsightService) Print(w io.Writer, out *models.Outputs, sum *models.InsightSummary) {
	sep := strings.Repeat("═", 60)
	thin := strings.Repeat("─", 60)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  📊 APP REVIEWS RECONCILIATION\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	if r := out.Report; r != nil {
		printQuality(w, thin, r)
	}

	// Overview
	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Total apps analyzed      : \033[1m%d\033[0m\n", sum.TotalApps)
	fmt.Fprintf(w, "  Total reviews            : \033[1m%d\033[0m\n", sum.TotalReviews)
	fmt.Fprintf(w, "  Average rating (overall) : \033[1;32m%.2f\033[0m\n", sum.OverallRating)
	if !sum.FirstDate.IsZero() {
		fmt.Fprintf(w, "  Date range               : %s to %s\n",
			sum.FirstDate.Format(dateLayout), sum.LastDate.Format(dateLayout))
	}
	fmt.Fprintln(w)

	printRanked(w, "Top 5 Best Rated Apps", thin, sum.TopRated)
	printRanked(w, "Bottom 5 Rated Apps", thin, sum.BottomRated)

	// Volume by app
	fmt.Fprintf(w, "\033[1;33m  Review Volume by App\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(out.AppKPIs) == 0 {
		fmt.Fprintf(w, "  No app data\n")
	} else {
		byVolume := make([]*models.AppKPI, len(out.AppKPIs))
		copy(byVolume, out.AppKPIs)
		sort.SliceStable(byVolume, func(i, j int) bool {
			return byVolume[i].NumReviews > byVolume[j].NumReviews
		})
		max := byVolume[0].NumReviews
		for _, k := range byVolume {
			bar := strings.Repeat("█", scaleBar(k.NumReviews, max, 30))
			fmt.Fprintf(w, "  %-28s %s (%d)\n", truncate(k.AppName, 26), bar, k.NumReviews)
		}
	}
	fmt.Fprintln(w)

	// Recent trend
	fmt.Fprintf(w, "\033[1;33m  Rating Trend (last %d days present)\033[0m\n", RollingWindow)
	fmt.Fprintf(w, "  %s\n", thin)
	if len(out.Daily) == 0 {
		fmt.Fprintf(w, "  No daily data\n")
	} else {
		start := len(out.Daily) - RollingWindow
		if start < 0 {
			start = 0
		}
		for _, d := range out.Daily[start:] {
			fmt.Fprintf(w, "  %s  reviews %5d  avg %.2f  7-day %.2f\n",
				d.Date.Format(dateLayout), d.DailyNumReviews, d.DailyAvgRating, d.Rolling7DayAvg)
		}
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func printQuality(w io.Writer, thin string, r *models.RunReport) {
	fmt.Fprintf(w, "\033[1;33m  Data Quality (run %s)\033[0m\n", r.RunID)
	fmt.Fprintf(w, "  %s\n", thin)
	for _, src := range r.Sources {
		if src.Skipped {
			fmt.Fprintf(w, "  %-24s \033[33mskipped\033[0m (%s)\n", truncate(src.Name, 24), src.SkipReason)
			continue
		}
		fmt.Fprintf(w, "  %-24s rows %6d | malformed %4d | unmappable %4d\n",
			truncate(src.Name, 24), src.Rows, src.Malformed, src.Unmappable)
	}
	fmt.Fprintf(w, "  Input rows        : \033[1m%d\033[0m\n", r.InputRows)
	fmt.Fprintf(w, "  Retained reviews  : \033[1;32m%d\033[0m\n", r.Retained)
	fmt.Fprintf(w, "  Dropped malformed : %d\n", r.Malformed)
	fmt.Fprintf(w, "  Dropped unmappable: %d\n", r.Unmappable)
	for _, reason := range sortedReasons(r.Invalid) {
		fmt.Fprintf(w, "  Dropped invalid   : %d (%s)\n", r.Invalid[reason], reason)
	}
	fmt.Fprintf(w, "  Dropped duplicate : %d\n", r.Duplicates)
	fmt.Fprintf(w, "  Catalog apps      : %d (duplicates %d)\n", r.CatalogRows, r.CatalogDuplicates)
	fmt.Fprintln(w)
}

func printRanked(w io.Writer, title, thin string, kpis []*models.AppKPI) {
	fmt.Fprintf(w, "\033[1;33m  %s\033[0m\n", title)
	fmt.Fprintf(w, "  %s\n", thin)
	if len(kpis) == 0 {
		fmt.Fprintf(w, "  No rated apps found\n")
	} else {
		for i, k := range kpis {
			fmt.Fprintf(w, "  \033[1m%d.\033[0m %-38s \033[1;32m%.2f ★\033[0m  %5.1f%% low\n",
				i+1, truncate(k.AppName, 36), k.AvgRating, k.PctLowRating)
		}
	}
	fmt.Fprintln(w)
}

func sortedReasons(m map[string]int) []string {
	reasons := make([]string, 0, len(m))
	for k := range m {
		reasons = append(reasons, k)
	}
	sort.Strings(reasons)
	return reasons
}

func scaleBar(n, max, width int) int {
	if max <= 0 || n <= 0 {
		return 0
	}
	w := n * width / max
	if w < 1 {
		w = 1
	}
	return w
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
