package weather

import "time"

// Summarize combines per-condition statistics for one (city, day) into a
// DailySummary. Temperatures are aggregated over the whole day; the dominant
// condition is the one with the highest count, ties going to the condition
// listed first in stats. It reports false when stats hold no observations.
func Summarize(city string, date time.Time, stats []ConditionStat) (DailySummary, bool) {
	var (
		total    int64
		sumTemp  float64
		maxTemp  float64
		minTemp  float64
		dominant string
		best     int64
	)

	for _, s := range stats {
		if s.Count <= 0 {
			continue
		}
		if total == 0 {
			maxTemp, minTemp = s.MaxTemp, s.MinTemp
		}
		total += s.Count
		sumTemp += s.SumTemp

		if s.MaxTemp > maxTemp {
			maxTemp = s.MaxTemp
		}
		if s.MinTemp < minTemp {
			minTemp = s.MinTemp
		}

		// Strictly greater keeps the first-encountered condition on ties.
		if s.Count > best {
			best = s.Count
			dominant = s.Condition
		}
	}

	if total == 0 {
		return DailySummary{}, false
	}

	return DailySummary{
		City:              city,
		Date:              DayStart(date),
		AvgTemp:           sumTemp / float64(total),
		MaxTemp:           maxTemp,
		MinTemp:           minTemp,
		DominantCondition: dominant,
	}, true
}

// StatsFromObservations groups observations by condition in the order each
// condition is first encountered. Stores without grouped queries use it.
func StatsFromObservations(obs []Observation) []ConditionStat {
	index := make(map[string]int)
	var stats []ConditionStat

	for _, o := range obs {
		i, ok := index[o.Main]
		if !ok {
			index[o.Main] = len(stats)
			stats = append(stats, ConditionStat{
				Condition: o.Main,
				MaxTemp:   o.TempCelsius,
				MinTemp:   o.TempCelsius,
				FirstSeen: o.Timestamp,
			})
			i = len(stats) - 1
		}

		s := &stats[i]
		s.Count++
		s.SumTemp += o.TempCelsius
		if o.TempCelsius > s.MaxTemp {
			s.MaxTemp = o.TempCelsius
		}
		if o.TempCelsius < s.MinTemp {
			s.MinTemp = o.TempCelsius
		}
	}
	return stats
}
