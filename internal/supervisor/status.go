package supervisor

// Domains returns a copy of every domain's status in name order.
func (s *Supervisor) Domains() []DomainStatus {
	s.mu.Lock()
	out := make([]DomainStatus, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.domains[name].status())
	}
	s.mu.Unlock()

	for i := range out {
		s.fillHeartbeat(&out[i])
	}
	return out
}

// Domain returns the status of one domain.
func (s *Supervisor) Domain(name string) (DomainStatus, bool) {
	s.mu.Lock()
	d, ok := s.domains[name]
	if !ok {
		s.mu.Unlock()
		return DomainStatus{}, false
	}
	st := d.status()
	s.mu.Unlock()

	s.fillHeartbeat(&st)
	return st, true
}

// Counts returns the number of domains in each state.
func (s *Supervisor) Counts() map[State]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countsLocked()
}

func (s *Supervisor) countsLocked() map[State]int {
	counts := make(map[State]int, len(AllStates))
	for _, d := range s.domains {
		counts[d.state]++
	}
	return counts
}

// fillHeartbeat reads the heartbeat file outside the registry lock.
func (s *Supervisor) fillHeartbeat(st *DomainStatus) {
	if s.opts.Heartbeat == nil {
		return
	}
	if age, ok := s.opts.Heartbeat.Age(st.Name, s.now()); ok {
		st.HeartbeatAge = &age
	}
}
