package autopilot

// defaultStrategy heads for the food by Manhattan distance and never picks a
// cell that is off the grid or already part of the body.
const defaultStrategy = `
local moves = {
	{Dx = 0, Dy = -1},
	{Dx = 1, Dy = 0},
	{Dx = 0, Dy = 1},
	{Dx = -1, Dy = 0},
}

local function free(state, x, y)
	if x < 0 or y < 0 or x >= state.size or y >= state.size then
		return false
	end
	return not state.body[x .. ":" .. y]
end

function nextDirection(state)
	local best, bestDistance = nil, math.huge
	for _, move in ipairs(moves) do
		local x, y = state.head.x + move.Dx, state.head.y + move.Dy
		if free(state, x, y) then
			local distance = math.abs(state.food.x - x) + math.abs(state.food.y - y)
			if distance < bestDistance then
				best, bestDistance = move, distance
			end
		end
	end
	return best or state.direction
end
`
