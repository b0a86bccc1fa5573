package domain

import "time"

// ServiceStatus is a row in service_status: the most recent heartbeat for a
// named daemon, used by the health monitor to detect silent death.
type ServiceStatus struct {
	ServiceName   string
	LastHeartbeat time.Time
	Detail        string
}
