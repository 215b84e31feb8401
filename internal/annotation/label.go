package annotation

// point is a (row, col) pixel coordinate.
type point struct {
	row, col int
}

// Label groups marked pixels into 8-connected components and returns one
// Region per component in raster-scan order of each component's first pixel.
func Label(mask [][]bool) []Region {
	height := len(mask)
	if height == 0 {
		return nil
	}
	width := len(mask[0])

	visited := make([][]bool, height)
	for y := 0; y < height; y++ {
		visited[y] = make([]bool, width)
	}

	regions := make([]Region, 0)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if mask[y][x] && !visited[y][x] {
				regions = append(regions, floodFill(mask, visited, y, x, width, height))
			}
		}
	}
	return regions
}

// floodFill walks one component with an explicit stack to avoid deep
// recursion on large annotations.
func floodFill(mask, visited [][]bool, startRow, startCol, width, height int) Region {
	region := Region{MinRow: startRow, MinCol: startCol, MaxRow: startRow, MaxCol: startCol}
	stack := []point{{row: startRow, col: startCol}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.col < 0 || p.col >= width || p.row < 0 || p.row >= height {
			continue
		}
		if visited[p.row][p.col] || !mask[p.row][p.col] {
			continue
		}

		visited[p.row][p.col] = true
		region.Area++
		region.MinRow = min(region.MinRow, p.row)
		region.MinCol = min(region.MinCol, p.col)
		region.MaxRow = max(region.MaxRow, p.row)
		region.MaxCol = max(region.MaxCol, p.col)

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				stack = append(stack, point{row: p.row + dy, col: p.col + dx})
			}
		}
	}
	return region
}
