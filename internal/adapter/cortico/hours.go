package cortico

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/navicare/facility-sync/internal/entity"
)

var weekdayIndex = map[string]int{
	"monday":    0,
	"tuesday":   1,
	"wednesday": 2,
	"thursday":  3,
	"friday":    4,
	"saturday":  5,
	"sunday":    6,
}

// Schedule strings that mean "no parseable hours", not a data error.
var skipPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^-$`),
	regexp.MustCompile(`^closed$`),
	regexp.MustCompile(`^by appointment`),
	regexp.MustCompile(`^call`),
	regexp.MustCompile(`^contact`),
	regexp.MustCompile(`^n/?a$`),
	regexp.MustCompile(`^tbd`),
	regexp.MustCompile(`hours vary`),
}

var (
	allDayPattern = regexp.MustCompile(`24\s*(hours?|hrs?)`)
	segmentSplit  = regexp.MustCompile(`[,;/]`)
	rangePattern  = regexp.MustCompile(`^(\d{1,2}(?::\d{2})?\s*(?:AM|PM|am|pm)?)-(\d{1,2}(?::\d{2})?\s*(?:AM|PM|am|pm)?)`)
	meridiemRe    = regexp.MustCompile(`(?i)(AM|PM)`)
	dashVariants  = strings.NewReplacer("\u2013", "-", "\u2014", "-", "\u2212", "-",
		"\u2009", " ", "\u200a", " ", "\u200b", " ", "\u00a0", " ")
	squeezeSpace = regexp.MustCompile(`\s+`)
	dashSpacing  = regexp.MustCompile(`\s*-\s*`)
)

// parseOperatingHours converts the upstream hours payload, a day-name
// map or a 7-element list of schedule strings, into structured records.
// Unparseable days are dropped; they carry phrases like "call for
// hours" that have no open/close times.
func parseOperatingHours(payload any) []entity.HoursRecord {
	var records []entity.HoursRecord

	appendDay := func(rawDay string, rawSchedule any) {
		weekday, ok := resolveWeekday(rawDay)
		if !ok {
			return
		}
		schedule, ok := rawSchedule.(string)
		if !ok {
			return
		}
		records = append(records, parseDay(weekday, schedule)...)
	}

	switch v := payload.(type) {
	case map[string]any:
		// Iterate weekdays in order; map iteration alone would scramble
		// the slot numbering between runs.
		byDay := make(map[int]any, len(v))
		for rawDay, rawSchedule := range v {
			if weekday, ok := resolveWeekday(rawDay); ok {
				byDay[weekday] = rawSchedule
			}
		}
		for weekday := 0; weekday <= 6; weekday++ {
			if rawSchedule, ok := byDay[weekday]; ok {
				appendDay(strconv.Itoa(weekday), rawSchedule)
			}
		}
	case []any:
		for i, rawSchedule := range v {
			appendDay(strconv.Itoa(i), rawSchedule)
		}
	}
	return records
}

func resolveWeekday(raw string) (int, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if weekday, ok := weekdayIndex[key]; ok {
		return weekday, true
	}
	weekday, err := strconv.Atoi(key)
	if err != nil || weekday < 0 || weekday > 6 {
		return 0, false
	}
	return weekday, true
}

func parseDay(weekday int, schedule string) []entity.HoursRecord {
	normalized := normalizeScheduleText(schedule)
	lower := strings.ToLower(normalized)
	if lower == "" {
		return nil
	}
	for _, p := range skipPatterns {
		if p.MatchString(lower) {
			return nil
		}
	}

	if strings.Contains(lower, "24/7") || allDayPattern.MatchString(lower) {
		return []entity.HoursRecord{{Weekday: weekday, OpenTime: "00:00", CloseTime: "23:59", Slot: 1}}
	}

	normalized = strings.ReplaceAll(normalized, " and ", ", ")

	var records []entity.HoursRecord
	seen := make(map[string]bool)
	for _, segment := range segmentSplit.Split(normalized, -1) {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		open, close, ok := parseHourSegment(segment)
		if !ok || open >= close {
			continue
		}
		span := open + "-" + close
		if seen[span] {
			continue
		}
		seen[span] = true
		records = append(records, entity.HoursRecord{
			Weekday:   weekday,
			OpenTime:  open,
			CloseTime: close,
			Slot:      len(records) + 1,
		})
	}
	return records
}

func normalizeScheduleText(text string) string {
	normalized := dashVariants.Replace(text)
	normalized = strings.ReplaceAll(normalized, " to ", " - ")
	normalized = squeezeSpace.ReplaceAllString(normalized, " ")
	return strings.TrimSpace(normalized)
}

// parseHourSegment parses one "9am-5pm" style range into 24-hour
// HH:MM open/close times.
func parseHourSegment(segment string) (open, close string, ok bool) {
	cleaned := dashSpacing.ReplaceAllString(strings.TrimSpace(segment), "-")
	match := rangePattern.FindStringSubmatch(cleaned)
	if match == nil {
		return "", "", false
	}

	startRaw := strings.TrimSpace(match[1])
	endRaw := strings.TrimSpace(match[2])

	// "9 - 5pm" means both times are PM; borrow the end meridiem when
	// the start has none.
	endMeridiem := extractMeridiem(endRaw)
	startMeridiem := extractMeridiem(startRaw)
	if startMeridiem == "" {
		startMeridiem = endMeridiem
	}

	open = to24Hour(startRaw, startMeridiem)
	close = to24Hour(endRaw, endMeridiem)
	if open == "" || close == "" {
		return "", "", false
	}
	return open, close, true
}

func extractMeridiem(timeStr string) string {
	match := meridiemRe.FindString(timeStr)
	return strings.ToUpper(match)
}

func to24Hour(timeStr, fallbackMeridiem string) string {
	cleaned := strings.ToUpper(strings.TrimSpace(timeStr))
	cleaned = strings.ReplaceAll(cleaned, ".", "")

	meridiem := extractMeridiem(cleaned)
	if meridiem != "" {
		cleaned = meridiemRe.ReplaceAllString(cleaned, "")
	} else {
		meridiem = fallbackMeridiem
	}
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return ""
	}

	hourStr, minuteStr := cleaned, "00"
	if h, m, found := strings.Cut(cleaned, ":"); found {
		hourStr, minuteStr = h, m
	}

	hour, err := strconv.Atoi(hourStr)
	if err != nil {
		return ""
	}
	minute, err := strconv.Atoi(minuteStr)
	if err != nil || minute < 0 || minute > 59 {
		return ""
	}

	switch meridiem {
	case "AM":
		if hour == 12 {
			hour = 0
		}
	case "PM":
		if hour != 12 {
			hour += 12
		}
	}
	if hour < 0 || hour > 23 {
		return ""
	}
	return fmt.Sprintf("%02d:%02d", hour, minute)
}
