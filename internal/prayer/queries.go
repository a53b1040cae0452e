package prayer

import (
	"sort"

	"github.com/julianstephens/prayanswer/internal/logger"
	"github.com/julianstephens/prayanswer/internal/models"
	"github.com/julianstephens/prayanswer/internal/storage"
)

// The queries below never fail: a persistence error is logged and an empty
// result returned. Lists are newest first.

func (s *Service) All() []models.Prayer {
	return s.list("all", storage.PrayerFilter{})
}

func (s *Service) PrayersInStorage(st models.Storage) []models.Prayer {
	return s.list("storage", storage.PrayerFilter{Storage: &st})
}

func (s *Service) PrayersByCategory(c models.Category) []models.Prayer {
	return s.list("category", storage.PrayerFilter{Category: &c})
}

// PrayersByCategoryInStorage combines both filters.
func (s *Service) PrayersByCategoryInStorage(c models.Category, st models.Storage) []models.Prayer {
	return s.list("category", storage.PrayerFilter{Category: &c, Storage: &st})
}

func (s *Service) FavoritePrayers() []models.Prayer {
	fav := true
	return s.list("favorites", storage.PrayerFilter{Favorite: &fav})
}

func (s *Service) FavoritesInStorage(st models.Storage) []models.Prayer {
	fav := true
	return s.list("favorites", storage.PrayerFilter{Storage: &st, Favorite: &fav})
}

// AllTargets lists the distinct non-empty targets in use.
func (s *Service) AllTargets() []string {
	targets, err := s.store.ListTargets()
	if err != nil {
		logger.Error("Failed to list prayer targets", "error", err)
		return []string{}
	}
	return targets
}

func (s *Service) list(query string, filter storage.PrayerFilter) []models.Prayer {
	prayers, err := s.store.ListPrayers(filter)
	if err != nil {
		logger.Error("Failed to query prayers", "query", query, "error", err)
		return []models.Prayer{}
	}
	return prayers
}

// Stats summarizes the journal.
type Stats struct {
	Total     int
	Favorites int
	ByStorage map[models.Storage]int
	// TopCategory is empty when there are no prayers.
	TopCategory      models.Category
	TopCategoryCount int
	ByTarget         []TargetCount
	WithTargetDate   int
	Upcoming         int
}

type TargetCount struct {
	Target string
	Count  int
}

// Stats counts prayers as of the service clock.
func (s *Service) Stats() Stats {
	prayers := s.All()
	today := models.StartOfDay(s.now())

	st := Stats{
		Total:     len(prayers),
		ByStorage: make(map[models.Storage]int, len(models.AllStorages)),
	}
	for _, state := range models.AllStorages {
		st.ByStorage[state] = 0
	}

	byCategory := make(map[models.Category]int)
	byTarget := make(map[string]int)
	for _, p := range prayers {
		st.ByStorage[p.Storage]++
		byCategory[p.Category]++
		if p.IsFavorite {
			st.Favorites++
		}
		byTarget[p.DisplayTarget()]++
		if p.TargetDate != nil {
			st.WithTargetDate++
			if p.Storage == models.StorageWaiting && models.DaysBetween(today, *p.TargetDate) >= 0 {
				st.Upcoming++
			}
		}
	}

	// ties go to the category listed first
	for _, c := range models.AllCategories {
		if n := byCategory[c]; n > st.TopCategoryCount {
			st.TopCategory, st.TopCategoryCount = c, n
		}
	}

	for target, n := range byTarget {
		st.ByTarget = append(st.ByTarget, TargetCount{Target: target, Count: n})
	}
	sort.Slice(st.ByTarget, func(i, j int) bool {
		if st.ByTarget[i].Count != st.ByTarget[j].Count {
			return st.ByTarget[i].Count > st.ByTarget[j].Count
		}
		return st.ByTarget[i].Target < st.ByTarget[j].Target
	})
	return st
}
