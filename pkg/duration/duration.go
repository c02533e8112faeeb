// Package duration разбирает человекочитаемые длительности вида "1시간 30분" в минуты.
package duration

import (
	"math"
	"regexp"
	"strconv"
)

var (
	hoursRe   = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*시간`)
	minutesRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*분`)
	secondsRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*초`)
	numberRe  = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

// ParseMinutes возвращает целое количество минут для строки длительности.
// Учитывает токены "<N>시간" и "<N>분" в любом порядке. Если ни одного токена нет,
// берется первое число как минуты. Для строки без чисел и для значений,
// не помещающихся в int32, возвращает 0.
func ParseMinutes(input string) int {
	return int(ParseFractionalMinutes(input))
}

// ParseFractionalMinutes - как ParseMinutes, но сохраняет дробную часть
// и учитывает секунды: "3.75분" и "3분 45초" дают 3.75.
func ParseFractionalMinutes(input string) float64 {
	hours, hasHours := firstGroup(hoursRe, input)
	minutes, hasMinutes := firstGroup(minutesRe, input)
	seconds, hasSeconds := firstGroup(secondsRe, input)

	var total float64
	if hasHours || hasMinutes || hasSeconds {
		total = hours*60 + minutes + seconds/60
	} else {
		bare := numberRe.FindString(input)
		if bare == "" {
			return 0
		}
		n, err := strconv.ParseFloat(bare, 64)
		if err != nil {
			return 0
		}
		total = n
	}

	if math.IsNaN(total) || math.IsInf(total, 0) || total < 0 || total > math.MaxInt32 {
		return 0
	}
	return total
}

// Label форматирует минуты обратно в строку "N시간 M분" / "M분".
func Label(totalMinutes int) string {
	if totalMinutes <= 0 {
		return "0분"
	}
	h, m := totalMinutes/60, totalMinutes%60
	switch {
	case h == 0:
		return strconv.Itoa(m) + "분"
	case m == 0:
		return strconv.Itoa(h) + "시간"
	default:
		return strconv.Itoa(h) + "시간 " + strconv.Itoa(m) + "분"
	}
}

func firstGroup(re *regexp.Regexp, input string) (float64, bool) {
	match := re.FindStringSubmatch(input)
	if match == nil {
		return 0, false
	}
	n, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
