package fetchcache

// Status is the state of a single entry.
type Status uint8

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
	StatusRefetching
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	case StatusRefetching:
		return "refetching"
	default:
		return "unknown"
	}
}

// PageStatus is the state of a paginated entry.
type PageStatus uint8

const (
	PageIdle PageStatus = iota
	PageLoading
	PageSuccess
	PageError
	PageFetchingNext
	PageFetchingPrevious
)

func (s PageStatus) String() string {
	switch s {
	case PageIdle:
		return "idle"
	case PageLoading:
		return "loading"
	case PageSuccess:
		return "success"
	case PageError:
		return "error"
	case PageFetchingNext:
		return "fetching-next"
	case PageFetchingPrevious:
		return "fetching-previous"
	default:
		return "unknown"
	}
}
