package domain

import "fmt"

// ResultStatus is the closed set of run outcomes. The declaration order is
// the display order used for tie-breaking below.
type ResultStatus string

const (
	StatusOK            ResultStatus = "OK"
	StatusMispunched    ResultStatus = "MISPUNCHED"
	StatusNoRanking     ResultStatus = "NO_RANKING"
	StatusDisqualified  ResultStatus = "DISQUALIFIED"
	StatusDidNotStart   ResultStatus = "DID_NOT_START"
	StatusDidNotFinish  ResultStatus = "DID_NOT_FINISH"
	StatusOverTimeLimit ResultStatus = "OVER_TIME_LIMIT"
	StatusUnofficial    ResultStatus = "UNOFFICIAL"
	StatusError         ResultStatus = "ERROR"
)

var resultStatusOrder = []ResultStatus{
	StatusOK,
	StatusMispunched,
	StatusNoRanking,
	StatusDisqualified,
	StatusDidNotStart,
	StatusDidNotFinish,
	StatusOverTimeLimit,
	StatusUnofficial,
	StatusError,
}

// Rank gives the position of the status in the display order. Unknown values
// sort last; they can only come from corrupted storage and ParseResultStatus
// is the gate for those.
func (s ResultStatus) Rank() int {
	for i, v := range resultStatusOrder {
		if v == s {
			return i
		}
	}
	return len(resultStatusOrder)
}

// ParseResultStatus maps a stored string to a status. There is deliberately
// no fallback value: an unknown string is a data error, not a default.
func ParseResultStatus(s string) (ResultStatus, error) {
	for _, v := range resultStatusOrder {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown result status %q", s)
}

// ServiceStatus is the state of one configured result service.
type ServiceStatus string

const (
	ServiceInit         ServiceStatus = "INIT"
	ServiceRunning      ServiceStatus = "RUNNING"
	ServiceOK           ServiceStatus = "OK"
	ServiceNoNetwork    ServiceStatus = "NO_NETWORK"
	ServiceUnauthorized ServiceStatus = "UNAUTHORIZED"
	ServiceError        ServiceStatus = "ERROR"
)

func ParseServiceStatus(s string) (ServiceStatus, error) {
	switch v := ServiceStatus(s); v {
	case ServiceInit, ServiceRunning, ServiceOK, ServiceNoNetwork, ServiceUnauthorized, ServiceError:
		return v, nil
	}
	return "", fmt.Errorf("unknown service status %q", s)
}

// ServiceType selects the result publisher variant for a configured service.
type ServiceType string

const (
	// ServiceOResults posts unsent results as one JSON batch and reconciles
	// the server's per-record rejection list.
	ServiceOResults ServiceType = "oresults"
	// ServiceLiveresultat uploads the whole start list and result list as
	// XML on every call.
	ServiceLiveresultat ServiceType = "liveresultat"
)

func ParseServiceType(s string) (ServiceType, error) {
	switch v := ServiceType(s); v {
	case ServiceOResults, ServiceLiveresultat:
		return v, nil
	}
	return "", fmt.Errorf("unknown service type %q", s)
}

func ParseRaceType(s string) (RaceType, error) {
	switch v := RaceType(s); v {
	case RaceClassic, RaceFreeOrder:
		return v, nil
	}
	return "", fmt.Errorf("unknown race type %q", s)
}

func ParseControlKind(s string) (ControlKind, error) {
	switch v := ControlKind(s); v {
	case KindStart, KindControl, KindFinish, KindBeacon:
		return v, nil
	}
	return "", fmt.Errorf("unknown control kind %q", s)
}
