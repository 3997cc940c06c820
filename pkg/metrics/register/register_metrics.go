// Package register pulls in every built-in metrics collector by its
// side effect: importing this package registers all of them with
// pkg/metrics's shared Gatherer.
package register

import (
	"github.com/IAIK/LayeredBinaryTemplating/pkg/metrics"
	"github.com/IAIK/LayeredBinaryTemplating/pkg/pagecache"
)

func init() {
	if err := metrics.RegisterCollector("pagecache", pagecache.NewPromCollector); err != nil {
		panic(err)
	}
}
