package configgen

import (
	"container/heap"
	"strings"

	"github.com/hsdnet/controller/internal/model"
)

// edge is one directed hop in the link graph: from the owning device,
// out localPort, to the neighbor device.
type edge struct {
	to        string
	localPort string
	link      model.Link
}

// routeGlobally allocates a /30 per link, then for every device D and
// address-policy-bearing device T, computes D's shortest-hop path to
// T via Dijkstra and emits the route that gets D's traffic for T's
// addresses to the right next hop.
func (g *Generator) routeGlobally(devices map[string]model.Device, links []model.Link, addresses map[string][]string, emit func(device, line string)) {
	graph := make(map[string][]edge)
	linkAddr := make(map[string]map[string]string) // link key -> device -> its assigned cidr

	for _, link := range links {
		cidrA, cidrB, err := g.pool.Allocate(link)
		if err != nil {
			continue
		}
		// Assign deterministically by the lexicographically smaller
		// "<device>-<port>" endpoint, independent of the order the
		// topology fusion happened to produce A/Z in.
		aKey, zKey := endpointKey(link.A), endpointKey(link.Z)
		first, second := link.A, link.Z
		if zKey < aKey {
			first, second = link.Z, link.A
		}

		assigned := map[string]string{
			first.Device:  cidrA,
			second.Device: cidrB,
		}
		linkAddr[link.Key()] = assigned

		graph[link.A.Device] = append(graph[link.A.Device], edge{to: link.Z.Device, localPort: link.A.Port, link: link})
		graph[link.Z.Device] = append(graph[link.Z.Device], edge{to: link.A.Device, localPort: link.Z.Port, link: link})

		emit(link.A.Device, model.NewAddress(link.A.Port, assigned[link.A.Device]).Raw)
		emit(link.Z.Device, model.NewAddress(link.Z.Port, assigned[link.Z.Device]).Raw)
	}

	for d := range devices {
		dist, pred := shortestHops(graph, d)
		for t, addrs := range addresses {
			if t == d {
				continue
			}
			distT, reachable := dist[t]
			if !reachable {
				continue
			}

			var nextHopDevice string
			if distT == 1 {
				nextHopDevice = t
			} else {
				cur := t
				for dist[cur] > 2 {
					cur = pred[cur]
				}
				nextHopDevice = pred[cur]
			}

			link, exitPort, ok := findLink(graph, d, nextHopDevice)
			if !ok {
				continue
			}
			nextHopCIDR, ok := linkAddr[link.Key()][nextHopDevice]
			if !ok {
				continue
			}
			nextHopIP := stripPrefix(nextHopCIDR)

			for _, addr := range addrs {
				emit(d, model.NewRoute(addr, exitPort, nextHopIP).Raw)
			}
		}
	}
}

// shortestHops runs unit-weight Dijkstra (equivalent to BFS here,
// since every hop costs 1) from source over graph, returning hop-count
// distances and the predecessor on each shortest path.
func shortestHops(graph map[string][]edge, source string) (dist map[string]int, pred map[string]string) {
	dist = map[string]int{source: 0}
	pred = map[string]string{}

	pq := &nodeHeap{{name: source, dist: 0}}
	heap.Init(pq)

	visited := map[string]bool{}
	for pq.Len() > 0 {
		cur := heap.Pop(pq).(node)
		if visited[cur.name] {
			continue
		}
		visited[cur.name] = true

		for _, e := range graph[cur.name] {
			next := cur.dist + 1
			if d, ok := dist[e.to]; !ok || next < d {
				dist[e.to] = next
				pred[e.to] = cur.name
				heap.Push(pq, node{name: e.to, dist: next})
			}
		}
	}
	return dist, pred
}

type node struct {
	name string
	dist int
}

type nodeHeap []node

func (h nodeHeap) Len() int            { return len(h) }
func (h nodeHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h nodeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *nodeHeap) Push(x interface{}) { *h = append(*h, x.(node)) }
func (h *nodeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// findLink returns the link directly joining from and to, and from's
// local port on it.
func findLink(graph map[string][]edge, from, to string) (model.Link, string, bool) {
	for _, e := range graph[from] {
		if e.to == to {
			return e.link, e.localPort, true
		}
	}
	return model.Link{}, "", false
}

func endpointKey(e model.Endpoint) string {
	return e.Device + "-" + e.Port
}

func stripPrefix(cidr string) string {
	if i := strings.IndexByte(cidr, '/'); i >= 0 {
		return cidr[:i]
	}
	return cidr
}
