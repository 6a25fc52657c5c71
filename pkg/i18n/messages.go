package i18n

// catalog maps locale to translation key to template. Templates use {0}, {1} placeholders.
var catalog = map[string]map[string]string{
	LangEnglish: {
		"NOT_FOUND":                  "The requested calendar, slot or booking was not found.",
		"FORBIDDEN":                  "You are not allowed to access this resource.",
		"UNAUTHORIZED":               "Authentication is required.",
		"CONFLICT":                   "The resource already exists.",
		"VALIDATION_ERROR":           "Validation failed. Please check your input.",
		"INTERNAL_ERROR":             "An internal server error occurred.",
		"TRY_AGAIN":                  "The server is busy. Please try again.",
		"RATE_LIMIT_EXCEEDED":        "Too many requests. Please try again later.",
		"SLOT_NOT_AVAILABLE_ON_DATE": "This slot is not available on the selected date.",
		"WEEKDAY_MISMATCH":           "The selected date does not fall on the correct day of the week for this slot.",
		"GRADE_NOT_ALLOWED":          "Grade {0} is not allowed for this calendar.",
		"DATE_IN_PAST":               "Cannot book a date in the past.",
		"INSUFFICIENT_LEAD_TIME":     "Bookings must be made at least 24 hours in advance.",
		"SLOT_FULL":                  "This slot is already full.",
		"GRADE_EXCLUSIVE_CONFLICT":   "This slot is reserved for grade {0} students on this date.",
		"DUPLICATE_BOOKING":          "You have already booked this slot.",
		"SLOT_HAS_FUTURE_BOOKINGS":   "Cannot remove {0} on {1} because it has future bookings. Cancel the bookings first.",

		"period": "period {0}",
		"day.0":  "Sunday",
		"day.1":  "Monday",
		"day.2":  "Tuesday",
		"day.3":  "Wednesday",
		"day.4":  "Thursday",
		"day.5":  "Friday",
		"day.6":  "Saturday",
	},
	LangHebrew: {
		"NOT_FOUND":                  "היומן, המשבצת או ההזמנה המבוקשים לא נמצאו.",
		"FORBIDDEN":                  "אין לך הרשאה לגשת למשאב זה.",
		"UNAUTHORIZED":               "נדרשת התחברות.",
		"CONFLICT":                   "המשאב כבר קיים.",
		"VALIDATION_ERROR":           "הנתונים שהוזנו אינם תקינים.",
		"INTERNAL_ERROR":             "אירעה שגיאת שרת.",
		"TRY_AGAIN":                  "השרת עמוס כרגע. נסה שוב.",
		"RATE_LIMIT_EXCEEDED":        "יותר מדי בקשות. נסה שוב מאוחר יותר.",
		"SLOT_NOT_AVAILABLE_ON_DATE": "המשבצת אינה זמינה בתאריך שנבחר.",
		"WEEKDAY_MISMATCH":           "התאריך שנבחר אינו חל ביום השבוע של המשבצת.",
		"GRADE_NOT_ALLOWED":          "כיתה {0} אינה מורשית ביומן זה.",
		"DATE_IN_PAST":               "לא ניתן להזמין תאריך שעבר.",
		"INSUFFICIENT_LEAD_TIME":     "יש להזמין לפחות 24 שעות מראש.",
		"SLOT_FULL":                  "המשבצת כבר מלאה.",
		"GRADE_EXCLUSIVE_CONFLICT":   "המשבצת שמורה לתלמידי כיתה {0} בתאריך זה.",
		"DUPLICATE_BOOKING":          "כבר הזמנת את המשבצת הזו.",
		"SLOT_HAS_FUTURE_BOOKINGS":   "לא ניתן להסיר את {0} ב{1} כי יש הזמנות עתידיות. בטל קודם את ההזמנות.",

		"period": "שעה {0}",
		"day.0":  "יום ראשון",
		"day.1":  "יום שני",
		"day.2":  "יום שלישי",
		"day.3":  "יום רביעי",
		"day.4":  "יום חמישי",
		"day.5":  "יום שישי",
		"day.6":  "שבת",
	},
}
