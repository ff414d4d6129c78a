package orders

var InsertOrder = insertOrder
