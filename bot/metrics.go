package bot

import (
	"time"

	"github.com/jonas747/discordgo/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metricsShardStatuses = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "bot_shards_status",
	Help: "Shard statuses",
}, []string{"status"})

var metricsTotalShards = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "bot_shards_total",
	Help: "Total number of shards on this node",
})

var metricsMembersTotal = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "bot_members_total",
	Help: "Total number of members on this node",
})

var metricsGuildsTotal = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "bot_guilds_total",
	Help: "Total number of guilds on this node",
})

func runUpdateMetrics() {
	ticker := time.NewTicker(time.Second * 10)
	for {
		<-ticker.C
		runUpdateShardMetrics()
		runUpdateGuildTotalsMetrics()
	}
}

func runUpdateShardMetrics() {
	statuses := map[string]int{
		"LOADING":      0,
		"READY":        0,
		"DISCONNECTED": 0,
	}

	for _, shard := range ShardManager.Sessions {
		if shard == nil || shard.GatewayManager == nil {
			continue
		}

		strStatus := ""
		switch shard.GatewayManager.Status() {
		case discordgo.GatewayStatusResuming, discordgo.GatewayStatusIdentifying:
			strStatus = "LOADING"
		case discordgo.GatewayStatusReady:
			strStatus = "READY"
		default:
			strStatus = "DISCONNECTED"
		}

		statuses[strStatus]++
	}

	for k, v := range statuses {
		metricsShardStatuses.With(prometheus.Labels{"status": k}).Set(float64(v))
	}
}

func runUpdateGuildTotalsMetrics() {
	totalGuilds := 0
	totalMembers := int64(0)

	for shardID := range ShardManager.Sessions {
		guilds := State.GetShardGuilds(int64(shardID))
		totalGuilds += len(guilds)

		for _, g := range guilds {
			totalMembers += g.MemberCount
		}
	}

	metricsGuildsTotal.Set(float64(totalGuilds))
	metricsMembersTotal.Set(float64(totalMembers))
}
