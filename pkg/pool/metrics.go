package pool

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// poolWorkers tracks the current pool size.
	poolWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "perfkit_pool_workers",
		Help: "Current number of pool workers",
	})

	// poolQueueDepth tracks admitted units awaiting pickup.
	poolQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "perfkit_pool_queue_depth",
		Help: "Current number of queued work units",
	})

	// poolTasks counts completed units by outcome.
	poolTasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "perfkit_pool_tasks_total",
		Help: "Total completed work units by outcome",
	}, []string{"outcome"}) // "success", "failure", "cancelled"

	// poolSaturated counts submissions rejected on a full queue.
	poolSaturated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "perfkit_pool_saturated_total",
		Help: "Total submissions rejected because the queue was full",
	})

	// poolResizes counts applied resize steps by direction.
	poolResizes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "perfkit_pool_resizes_total",
		Help: "Total pool resize steps by direction",
	}, []string{"direction"}) // "up", "down"
)
