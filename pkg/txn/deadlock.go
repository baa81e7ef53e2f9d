package txn

// DetectDeadlocks builds a wait-for graph over active transactions: an
// edge T -> T' exists when T has a pending interest (a write or delete) in
// a key that T' has already read or written. Cycles found by depth-first
// search are resolved by aborting the highest-id transaction in each
// cycle, the "youngest" victim policy.
//
// Returns the ids aborted to break cycles.
func (m *Manager) DetectDeadlocks() []ID {
	m.mu.Lock()
	defer m.mu.Unlock()

	graph := m.buildWaitForGraph()
	victims := resolveDeadlocks(graph)
	for _, id := range victims {
		if tx, ok := m.active[id]; ok {
			tx.State = StateAborted
			delete(m.active, id)
			m.concluded[id] = tx
		}
	}
	return victims
}

// buildWaitForGraph must be called with m.mu held.
func (m *Manager) buildWaitForGraph() map[ID][]ID {
	graph := make(map[ID][]ID, len(m.active))
	for id, tx := range m.active {
		var edges []ID
		for otherID, other := range m.active {
			if otherID == id {
				continue
			}
			if txInterferesWith(tx, other) {
				edges = append(edges, otherID)
			}
		}
		graph[id] = edges
	}
	return graph
}

// txInterferesWith reports whether tx has staged work that collides with
// something other has already touched, meaning tx would have to wait for
// other at commit time.
func txInterferesWith(tx, other *Transaction) bool {
	for docID := range tx.writeSet {
		if other.touches(docID) {
			return true
		}
		if _, ok := other.readSet[docID]; ok {
			return true
		}
	}
	for docID := range tx.deleteSet {
		if other.touches(docID) {
			return true
		}
		if _, ok := other.readSet[docID]; ok {
			return true
		}
	}
	return false
}

// resolveDeadlocks runs DFS cycle detection over the wait-for graph and
// returns the set of transactions to abort: the highest id found in each
// distinct cycle.
func resolveDeadlocks(graph map[ID][]ID) []ID {
	const (
		white = iota
		gray
		black
	)
	color := make(map[ID]int, len(graph))
	var victims []ID
	seen := make(map[ID]struct{})

	var path []ID
	var visit func(ID)
	visit = func(n ID) {
		color[n] = gray
		path = append(path, n)
		for _, next := range graph[n] {
			switch color[next] {
			case white:
				visit(next)
			case gray:
				victim := cycleVictim(path, next)
				if _, ok := seen[victim]; !ok {
					seen[victim] = struct{}{}
					victims = append(victims, victim)
				}
			}
		}
		path = path[:len(path)-1]
		color[n] = black
	}

	for n := range graph {
		if color[n] == white {
			visit(n)
		}
	}
	return victims
}

// cycleVictim returns the highest-id transaction among the cycle formed by
// path[i:] where path[i] == closesTo.
func cycleVictim(path []ID, closesTo ID) ID {
	start := 0
	for i, n := range path {
		if n == closesTo {
			start = i
			break
		}
	}
	victim := path[start]
	for _, n := range path[start:] {
		if n > victim {
			victim = n
		}
	}
	return victim
}
