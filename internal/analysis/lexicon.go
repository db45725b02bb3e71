package analysis

// Default lexicons. Every list can be replaced through Config.

// DefaultSubjectKeywords are spam keywords matched in subjects, +15 each
var DefaultSubjectKeywords = []string{
	"free", "act now", "winner", "urgent", "limited time", "click here",
	"guaranteed", "risk-free", "congratulations", "prize", "lottery",
	"viagra", "casino", "buy now", "100%", "cash bonus", "no obligation",
}

// DefaultUrgencyPhrases are pressure phrases matched in bodies, +10 per hit
var DefaultUrgencyPhrases = []string{
	"urgent", "act now", "immediately", "expires today", "limited time",
	"last chance", "don't miss", "hurry", "final notice", "within 24 hours",
}

// DefaultURLShorteners are link-shortener domains, +15 per link
var DefaultURLShorteners = []string{
	"bit.ly", "tinyurl.com", "goo.gl", "t.co", "ow.ly", "is.gd",
	"buff.ly", "rebrand.ly", "cutt.ly", "shorturl.at", "tiny.cc",
}

// DefaultBrandKeywords are display-name brand words that, paired with a
// no-reply local part, mark a likely impersonation
var DefaultBrandKeywords = []string{
	"bank", "paypal", "amazon", "apple", "microsoft", "netflix",
	"visa", "mastercard", "irs", "wells fargo", "chase",
}

var noReplyMarkers = []string{"noreply", "no-reply", "no_reply", "donotreply", "do-not-reply"}

var dangerousExtensions = map[string]bool{
	".exe": true, ".scr": true, ".bat": true, ".com": true,
	".pif": true, ".vbs": true, ".js": true,
}

var dangerousMIMETypes = map[string]bool{
	"application/x-msdownload":          true,
	"application/x-msdos-program":       true,
	"application/x-executable":          true,
	"application/x-dosexec":             true,
	"application/x-sh":                  true,
	"application/x-bat":                 true,
	"application/hta":                   true,
	"application/x-ms-shortcut":         true,
	"application/javascript":            true,
	"application/x-javascript":          true,
	"application/vnd.ms-cab-compressed": true,
}

// decoyExtensions are the document-looking extensions that precede the
// real one in double-extension names such as "invoice.pdf.exe"
var decoyExtensions = map[string]bool{
	"pdf": true, "doc": true, "docx": true, "xls": true, "xlsx": true,
	"ppt": true, "pptx": true, "txt": true, "rtf": true, "csv": true,
	"jpg": true, "jpeg": true, "png": true, "gif": true, "zip": true,
	"htm": true, "html": true, "mp3": true, "mp4": true,
}

// Sentiment lexicon tiers. Strong words weigh 3, moderate 2, weak 1.
var positiveLexicon = map[string]float64{
	"excellent": 3, "amazing": 3, "outstanding": 3, "fantastic": 3, "love": 3, "wonderful": 3, "perfect": 3,
	"good": 2, "great": 2, "happy": 2, "pleased": 2, "nice": 2, "thanks": 2, "thank": 2, "glad": 2,
	"ok": 1, "okay": 1, "fine": 1, "fair": 1, "decent": 1, "helpful": 1,
}

var negativeLexicon = map[string]float64{
	"terrible": 3, "awful": 3, "horrible": 3, "hate": 3, "scam": 3, "fraud": 3, "disgusting": 3,
	"bad": 2, "poor": 2, "angry": 2, "disappointed": 2, "problem": 2, "broken": 2, "unhappy": 2,
	"issue": 1, "concern": 1, "slow": 1, "late": 1, "confusing": 1, "annoying": 1,
}

// Spam phrase lexicons counted by the spamminess scorer
var urgencyLexicon = []string{
	"urgent", "act now", "immediately", "limited time", "expires", "hurry",
	"last chance", "only today", "don't delay",
}

var moneyLexicon = []string{
	"free money", "cash", "prize", "winner", "lottery", "million dollars",
	"wire transfer", "credit card", "earn money", "extra income", "bitcoin",
}

var suspiciousLexicon = []string{
	"click here", "verify your account", "confirm your password", "dear friend",
	"100% guaranteed", "no risk", "you have been selected", "update your billing",
	"account suspended",
}

// languageProfile is the evidence used to recognise one language
type languageProfile struct {
	code     string
	words    []string
	suffixes []string
	chars    string
}

// languageProfiles is ordered; ties resolve to the earlier entry
var languageProfiles = []languageProfile{
	{
		code:     "en",
		words:    []string{"the", "and", "is", "are", "you", "your", "with", "for", "this", "that", "have", "from", "will", "not", "of", "to", "in"},
		suffixes: []string{"ing", "tion", "ly", "ness", "ed"},
	},
	{
		code:     "es",
		words:    []string{"el", "la", "los", "las", "de", "que", "y", "en", "un", "una", "es", "por", "con", "para", "su", "del", "muy"},
		suffixes: []string{"ción", "mente", "dad", "ando", "iendo"},
		chars:    "ñ¿¡áíóú",
	},
	{
		code:     "fr",
		words:    []string{"le", "la", "les", "de", "et", "un", "une", "est", "pour", "dans", "que", "vous", "nous", "avec", "sur", "pas", "des"},
		suffixes: []string{"tion", "ment", "eux", "euse", "aient"},
		chars:    "àâçèéêëîïôûœ",
	},
	{
		code:     "de",
		words:    []string{"der", "die", "das", "und", "ist", "nicht", "ein", "eine", "mit", "für", "auf", "sie", "ich", "wir", "zu", "den", "von"},
		suffixes: []string{"ung", "keit", "heit", "lich", "schaft"},
		chars:    "äöüß",
	},
	{
		code:     "pt",
		words:    []string{"o", "a", "os", "as", "de", "que", "e", "em", "um", "uma", "não", "para", "com", "por", "mais", "do", "da"},
		suffixes: []string{"ção", "mente", "dade", "ões", "ando"},
		chars:    "ãõçáâêô",
	},
	{
		code:     "it",
		words:    []string{"il", "lo", "la", "gli", "di", "che", "e", "non", "un", "una", "per", "con", "sono", "del", "della", "mi", "ti"},
		suffixes: []string{"zione", "mente", "ità", "osso", "ando"},
		chars:    "àèéìòù",
	},
}
