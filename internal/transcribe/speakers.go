package transcribe

// AssignSpeakers applies the positional speaker heuristic: roughly the first
// 30% of segments are the CEO's prepared remarks, the next 20% the CFO's,
// and the remainder alternates analyst/executive Q&A.
func AssignSpeakers(segments []Segment) []Segment {
	total := len(segments)
	if total == 0 {
		return segments
	}
	out := make([]Segment, total)
	copy(out, segments)
	for i := range out {
		progress := float64(i) / float64(total)
		switch {
		case progress < 0.3:
			out[i].Speaker = "CEO"
			out[i].SegmentType = SegmentPrepared
		case progress < 0.5:
			out[i].Speaker = "CFO"
			out[i].SegmentType = SegmentPrepared
		case i%2 == 0:
			out[i].Speaker = "Analyst"
			out[i].SegmentType = SegmentQA
		default:
			out[i].Speaker = "Executive"
			out[i].SegmentType = SegmentQA
		}
	}
	return out
}

// SplitPreparedQA partitions labeled segments into prepared statements and
// the Q&A section.
func SplitPreparedQA(segments []Segment) (prepared, qa []Segment) {
	for _, seg := range segments {
		if seg.SegmentType == SegmentPrepared {
			prepared = append(prepared, seg)
		} else {
			qa = append(qa, seg)
		}
	}
	return prepared, qa
}
