package media

import "fmt"

// ReadyState describes how much media data is available around the
// current position.
type ReadyState int

const (
	HaveNothing ReadyState = iota
	HaveMetadata
	HaveCurrentData
	HaveFutureData
	HaveEnoughData
)

func (s ReadyState) String() string {
	switch s {
	case HaveNothing:
		return "HAVE_NOTHING"
	case HaveMetadata:
		return "HAVE_METADATA"
	case HaveCurrentData:
		return "HAVE_CURRENT_DATA"
	case HaveFutureData:
		return "HAVE_FUTURE_DATA"
	case HaveEnoughData:
		return "HAVE_ENOUGH_DATA"
	default:
		return fmt.Sprintf("ReadyState(%d)", int(s))
	}
}

// NetworkState describes the fetch activity of the element.
type NetworkState int

const (
	NetworkEmpty NetworkState = iota
	NetworkIdle
	NetworkLoading
	NetworkNoSource
)

func (s NetworkState) String() string {
	switch s {
	case NetworkEmpty:
		return "NETWORK_EMPTY"
	case NetworkIdle:
		return "NETWORK_IDLE"
	case NetworkLoading:
		return "NETWORK_LOADING"
	case NetworkNoSource:
		return "NETWORK_NO_SOURCE"
	default:
		return fmt.Sprintf("NetworkState(%d)", int(s))
	}
}

// TimeRange is a half-open interval of buffered media, in seconds.
type TimeRange struct {
	Start float64
	End   float64
}

// TimeRanges is an ordered list of non-overlapping buffered ranges.
type TimeRanges []TimeRange

func (r TimeRanges) Len() int            { return len(r) }
func (r TimeRanges) Start(i int) float64 { return r[i].Start }
func (r TimeRanges) End(i int) float64   { return r[i].End }
