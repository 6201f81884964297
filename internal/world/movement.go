package world

// Advance moves s one frame: a new head is appended at head + dir*speed and
// the tail follows unless the snake is still growing.
func (w *World) Advance(s *Snake) {
	if !s.Alive || s.Disconnected || len(s.Body) == 0 {
		return
	}
	speed := w.config.Speed
	s.Body = append(s.Body, s.Head().Add(s.Dir.Scale(speed)))

	if s.growth > 0 {
		s.growth--
		return
	}
	w.retractTail(s, speed)
}

func (w *World) retractTail(s *Snake, speed float64) {
	if len(s.Body) < 2 {
		return
	}
	tail, next := s.Body[0], s.Body[1]
	if tail.Dist(next) > speed {
		s.Body[0] = tail.Add(next.Sub(tail).Normalize().Scale(speed))
		return
	}

	// The tail reached or passed the next point.
	s.Body = s.Body[1:]
	if len(s.Body) >= 2 && s.Body[0].Dist(s.Body[1]) >= float64(w.config.Size) {
		s.Body = s.Body[1:]
	}
}
