package logger

// Category tags a log line emitted by the request layer.
type Category string

// Network log categories
const (
	CategorySend           Category = "send"
	CategorySuccess        Category = "success"
	CategorySuccessWarning Category = "success_warning"
	CategoryFail           Category = "fail"
	CategoryCache          Category = "cache"
	CategoryCancel         Category = "cancel"
	CategoryDownload       Category = "download"
	CategoryMock           Category = "mock"
)

// FieldCategory is the structured field holding the Category.
const FieldCategory = "category"

// Network returns an event at the level the category calls for, tagged with it.
// Slow successes log at warn, failures at error, sends at debug, the rest at info.
func Network(l Logger, c Category) LogEvent {
	var e LogEvent
	switch c {
	case CategorySend:
		e = l.Debug()
	case CategorySuccessWarning:
		e = l.Warn()
	case CategoryFail:
		e = l.Error()
	default:
		e = l.Info()
	}
	return e.Str(FieldCategory, string(c))
}
